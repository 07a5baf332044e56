package model

import "time"

type Material struct {
	ID                 int64
	Title              string
	Description        string
	Technology         string
	Difficulty         string
	PriceMinor         int64
	OriginalPriceMinor int64
	Pages              int
	Rating             float64
	ReviewCount        int
	ImageURL           string
	ContentURL         string
	PreviewURL         string
	IsActive           bool
	CreatedAt          time.Time
}

// MaterialView is the public JSON shape; contentUrl is never exposed.
type MaterialView struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Technology    string    `json:"technology"`
	Difficulty    string    `json:"difficulty"`
	Price         string    `json:"price"`
	OriginalPrice string    `json:"originalPrice,omitempty"`
	Pages         int       `json:"pages"`
	Rating        float64   `json:"rating"`
	ReviewCount   int       `json:"reviewCount"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	PreviewURL    string    `json:"previewUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (m *Material) View() MaterialView {
	view := MaterialView{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Technology:  m.Technology,
		Difficulty:  m.Difficulty,
		Price:       FormatMinor(m.PriceMinor),
		Pages:       m.Pages,
		Rating:      m.Rating,
		ReviewCount: m.ReviewCount,
		ImageURL:    m.ImageURL,
		PreviewURL:  m.PreviewURL,
		CreatedAt:   m.CreatedAt,
	}
	if m.OriginalPriceMinor > 0 {
		view.OriginalPrice = FormatMinor(m.OriginalPriceMinor)
	}
	return view
}

type Upload struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	FilePath     string    `json:"-"`
	FileSize     int64     `json:"fileSize"`
	MimeType     string    `json:"mimeType"`
	Technology   string    `json:"technology"`
	UploadedBy   string    `json:"uploadedBy"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

type UploadResponse struct {
	Message  string       `json:"message"`
	Upload   Upload       `json:"upload"`
	Material MaterialView `json:"material"`
}

type CartItem struct {
	ID         int64
	UserID     string
	MaterialID int64
	AddedAt    time.Time
	Material   Material
}

type CartItemView struct {
	ID       int64        `json:"id"`
	AddedAt  time.Time    `json:"addedAt"`
	Material MaterialView `json:"material"`
}

type AddToCartRequest struct {
	MaterialID int64 `json:"materialId" binding:"required,gt=0"`
}
