package usagerequests

// UsageQueryParams narrows the usage summary window.
type UsageQueryParams struct {
	Days int `form:"days"`
}
