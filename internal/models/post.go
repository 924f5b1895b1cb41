package models

import "time"

type PostStatus string

const (
	PostStatusPending  PostStatus = "PENDING"
	PostStatusApproved PostStatus = "APPROVED"
	PostStatusRejected PostStatus = "REJECTED"
)

type PostAuthor struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type Post struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Price       float64    `json:"price"`
	Location    string     `json:"location"`
	Status      PostStatus `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	Author      PostAuthor `json:"author"`
}

// PostFilter mirrors the query of GET /posts/filter. Zero values mean
// defaults.
type PostFilter struct {
	Status        string
	Page          int
	Size          int
	SortBy        string
	SortDirection string
}

type PageResponse[T any] struct {
	Items       []T   `json:"items"`
	Page        int   `json:"page"`
	Size        int   `json:"size"`
	TotalItems  int64 `json:"totalItems"`
	TotalPages  int   `json:"totalPages"`
	HasNext     bool  `json:"hasNext"`
	HasPrevious bool  `json:"hasPrevious"`
}

type DashboardStats struct {
	TotalPosts    int `json:"totalPosts"`
	PendingPosts  int `json:"pendingPosts"`
	ApprovedPosts int `json:"approvedPosts"`
	RejectedPosts int `json:"rejectedPosts"`
}
