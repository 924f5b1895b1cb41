package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"

	"github.com/rryowa/dangbai_session/internal/models"
	"github.com/rryowa/dangbai_session/internal/util"
)

// FilterPostsParams defines parameters for FilterPosts.
type FilterPostsParams struct {
	Status        *string `form:"status,omitempty" json:"status,omitempty"`
	Page          *int    `form:"page,omitempty" json:"page,omitempty"`
	Size          *int    `form:"size,omitempty" json:"size,omitempty"`
	SortBy        *string `form:"sortBy,omitempty" json:"sortBy,omitempty"`
	SortDirection *string `form:"sortDirection,omitempty" json:"sortDirection,omitempty"`
}

func (p FilterPostsParams) filter() models.PostFilter {
	var f models.PostFilter
	if p.Status != nil {
		f.Status = *p.Status
	}
	if p.Page != nil {
		f.Page = *p.Page
	}
	if p.Size != nil {
		f.Size = *p.Size
	}
	if p.SortBy != nil {
		f.SortBy = *p.SortBy
	}
	if p.SortDirection != nil {
		f.SortDirection = *p.SortDirection
	}
	return f
}

func bindFilterPostsParams(ctx echo.Context) (FilterPostsParams, error) {
	var params FilterPostsParams
	query := ctx.QueryParams()

	bindings := []struct {
		name string
		dest any
	}{
		{"status", &params.Status},
		{"page", &params.Page},
		{"size", &params.Size},
		{"sortBy", &params.SortBy},
		{"sortDirection", &params.SortDirection},
	}
	for _, b := range bindings {
		if err := runtime.BindQueryParameter("form", true, false, b.name, query, b.dest); err != nil {
			return FilterPostsParams{}, util.WrapResponseError(http.StatusBadRequest, err, "Invalid format for parameter "+b.name)
		}
	}
	return params, nil
}

// (GET /api/v1/posts/filter).
func (c *Controller) FilterPosts(ctx echo.Context) error {
	params, err := bindFilterPostsParams(ctx)
	if err != nil {
		return err
	}
	return c.ok(ctx, http.StatusOK, "Success", c.posts.Filter(params.filter()))
}
