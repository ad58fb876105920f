package conversationrequests

// UpdateConversationRequest renames or archives a conversation.
type UpdateConversationRequest struct {
	Title    *string `json:"title,omitempty"`
	Archived *bool   `json:"archived,omitempty"`
}

// ListConversationsQueryParams narrows conversation listings.
type ListConversationsQueryParams struct {
	IncludeArchived bool `form:"include_archived"`
	Limit           int  `form:"limit"`
	Offset          int  `form:"offset"`
}
