package backend

import (
	"sort"
	"strings"
	"time"

	"github.com/rryowa/dangbai_session/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PostCatalog serves a fixed set of listings for exercising authenticated
// reads.
type PostCatalog struct {
	posts []models.Post
}

func NewPostCatalog(now time.Time) *PostCatalog {
	seed := []struct {
		title    string
		price    float64
		location string
		status   models.PostStatus
	}{
		{"Xe đạp Giant ATX", 3500000, "Hà Nội", models.PostStatusApproved},
		{"iPhone 13 128GB", 9800000, "TP. Hồ Chí Minh", models.PostStatusApproved},
		{"Bàn làm việc gỗ sồi", 1200000, "Đà Nẵng", models.PostStatusPending},
		{"Máy ảnh Fujifilm X-T30", 14500000, "Hà Nội", models.PostStatusApproved},
		{"Tủ lạnh Panasonic 250L", 4200000, "Cần Thơ", models.PostStatusRejected},
		{"Guitar Yamaha C40", 1500000, "Huế", models.PostStatusPending},
	}

	posts := make([]models.Post, 0, len(seed))
	for i, s := range seed {
		posts = append(posts, models.Post{
			ID:          int64(i + 1),
			Title:       s.title,
			Description: s.title,
			Price:       s.price,
			Location:    s.location,
			Status:      s.status,
			CreatedAt:   now.Add(-time.Duration(len(seed)-i) * time.Hour),
			Author:      models.PostAuthor{ID: 1, Username: "alice"},
		})
	}
	return &PostCatalog{posts: posts}
}

func (c *PostCatalog) Filter(f models.PostFilter) models.PageResponse[models.Post] {
	if f.Size <= 0 {
		f.Size = defaultPageSize
	}
	if f.Size > maxPageSize {
		f.Size = maxPageSize
	}
	if f.Page < 0 {
		f.Page = 0
	}

	matched := make([]models.Post, 0, len(c.posts))
	for _, p := range c.posts {
		if f.Status == "" || strings.EqualFold(string(p.Status), f.Status) {
			matched = append(matched, p)
		}
	}

	less := func(a, b models.Post) bool {
		switch f.SortBy {
		case "price":
			return a.Price < b.Price
		case "title":
			return a.Title < b.Title
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	desc := !strings.EqualFold(f.SortDirection, "ASC")
	sort.SliceStable(matched, func(i, j int) bool {
		if desc {
			return less(matched[j], matched[i])
		}
		return less(matched[i], matched[j])
	})

	total := len(matched)
	totalPages := (total + f.Size - 1) / f.Size
	start := min(f.Page*f.Size, total)
	end := min(start+f.Size, total)

	return models.PageResponse[models.Post]{
		Items:       matched[start:end],
		Page:        f.Page,
		Size:        f.Size,
		TotalItems:  int64(total),
		TotalPages:  totalPages,
		HasNext:     f.Page+1 < totalPages,
		HasPrevious: f.Page > 0,
	}
}

func (c *PostCatalog) Stats() models.DashboardStats {
	stats := models.DashboardStats{TotalPosts: len(c.posts)}
	for _, p := range c.posts {
		switch p.Status {
		case models.PostStatusPending:
			stats.PendingPosts++
		case models.PostStatusApproved:
			stats.ApprovedPosts++
		case models.PostStatusRejected:
			stats.RejectedPosts++
		}
	}
	return stats
}
