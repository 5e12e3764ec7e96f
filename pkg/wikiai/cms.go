package wikiai

import (
	"context"
	"net/http"
	"strconv"

	"github.com/wikiai/kbclient/pkg/client"
	"github.com/wikiai/kbclient/pkg/types"
)

// CMSService manages the marketing-site content: blog posts, content stats,
// contact submissions, and sales leads. Blog and stats endpoints live under
// the configured CMS prefix.
type CMSService struct {
	s *Service
}

// BlogPost is one CMS blog post.
type BlogPost struct {
	ID        int      `json:"id"`
	Title     string   `json:"title"`
	Slug      string   `json:"slug"`
	Excerpt   string   `json:"excerpt,omitempty"`
	Content   string   `json:"content"`
	Author    string   `json:"author"`
	Category  string   `json:"category"`
	Featured  bool     `json:"featured"`
	Tags      []string `json:"tags"`
	ImageURL  string   `json:"image_url,omitempty"`
	ReadTime  string   `json:"read_time,omitempty"`
	Status    string   `json:"status"`
	Views     int      `json:"views"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// BlogPostSpec describes a post to create or update. For updates, empty
// fields are left unchanged.
type BlogPostSpec struct {
	Title    string   `json:"title,omitempty"`
	Slug     string   `json:"slug,omitempty"`
	Excerpt  string   `json:"excerpt,omitempty"`
	Content  string   `json:"content,omitempty"`
	Author   string   `json:"author,omitempty"`
	Category string   `json:"category,omitempty"`
	Featured bool     `json:"featured"`
	Tags     []string `json:"tags,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	ReadTime string   `json:"read_time,omitempty"`
	Status   string   `json:"status,omitempty"`
}

// ContentStats aggregates CMS activity across content types.
type ContentStats struct {
	BlogStats struct {
		TotalPosts     int `json:"total_posts"`
		PublishedPosts int `json:"published_posts"`
		DraftPosts     int `json:"draft_posts"`
		FeaturedPosts  int `json:"featured_posts"`
	} `json:"blog_stats"`
	HelpStats struct {
		TotalArticles     int `json:"total_articles"`
		PublishedArticles int `json:"published_articles"`
		DraftArticles     int `json:"draft_articles"`
		TotalViews        int `json:"total_views"`
	} `json:"help_stats"`
	ContactStats struct {
		TotalSubmissions      int `json:"total_submissions"`
		NewSubmissions        int `json:"new_submissions"`
		InProgressSubmissions int `json:"in_progress_submissions"`
	} `json:"contact_stats"`
	SalesStats struct {
		TotalLeads     int `json:"total_leads"`
		NewLeads       int `json:"new_leads"`
		QualifiedLeads int `json:"qualified_leads"`
	} `json:"sales_stats"`
}

// ContactSubmission is one inbound contact-form entry.
type ContactSubmission struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Company     string `json:"company,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Message     string `json:"message"`
	InquiryType string `json:"inquiry_type"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	CreatedAt   string `json:"created_at"`
}

// SalesLead is one tracked sales lead.
type SalesLead struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Company   string `json:"company,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Source    string `json:"source"`
	Status    string `json:"status"`
	Score     int    `json:"score"`
	CreatedAt string `json:"created_at"`
}

// ListPosts returns all blog posts. The endpoint responds with a bare array.
func (c *CMSService) ListPosts(ctx context.Context, token string) ([]BlogPost, error) {
	result, err := do[[]BlogPost](ctx, c.s, client.Request{
		URL:   c.s.cmsPrefix + "/blog/posts",
		Token: token,
	})
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// CreatePost publishes a new blog post.
func (c *CMSService) CreatePost(ctx context.Context, token string, spec BlogPostSpec) (*types.Envelope, error) {
	return doEnvelope(ctx, c.s, client.Request{
		URL:    c.s.cmsPrefix + "/blog/posts",
		Method: http.MethodPost,
		Token:  token,
		Body:   spec,
	})
}

// UpdatePost edits an existing blog post.
func (c *CMSService) UpdatePost(ctx context.Context, token string, id int, spec BlogPostSpec) (*types.Envelope, error) {
	return doEnvelope(ctx, c.s, client.Request{
		URL:    c.s.cmsPrefix + "/blog/posts/" + strconv.Itoa(id),
		Method: http.MethodPut,
		Token:  token,
		Body:   spec,
	})
}

// DeletePost removes a blog post.
func (c *CMSService) DeletePost(ctx context.Context, token string, id int) (*types.Envelope, error) {
	return doEnvelope(ctx, c.s, client.Request{
		URL:    c.s.cmsPrefix + "/blog/posts/" + strconv.Itoa(id),
		Method: http.MethodDelete,
		Token:  token,
	})
}

// ContentStats returns aggregate content statistics.
func (c *CMSService) ContentStats(ctx context.Context, token string) (*ContentStats, error) {
	return do[ContentStats](ctx, c.s, client.Request{
		URL:   c.s.cmsPrefix + "/content/stats",
		Token: token,
	})
}

// ListContactSubmissions returns contact-form submissions.
func (c *CMSService) ListContactSubmissions(ctx context.Context, token string) ([]ContactSubmission, error) {
	result, err := do[[]ContactSubmission](ctx, c.s, client.Request{
		URL:   "/api/contact/submissions",
		Token: token,
	})
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// ListSalesLeads returns tracked sales leads.
func (c *CMSService) ListSalesLeads(ctx context.Context, token string) ([]SalesLead, error) {
	result, err := do[[]SalesLead](ctx, c.s, client.Request{
		URL:   "/api/sales/leads",
		Token: token,
	})
	if err != nil {
		return nil, err
	}
	return *result, nil
}
