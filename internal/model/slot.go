package model

type SlotResponse struct {
	Position string `json:"position"`
	Found    bool   `json:"found"`
	HTML     string `json:"html"`
}

type RenderArticleRequest struct {
	HTML     string `json:"html" binding:"required"`
	Interval int    `json:"interval" binding:"omitempty,min=1,max=50"`
}

type RenderArticleResponse struct {
	HTML string `json:"html"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
