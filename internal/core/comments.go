package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/blogplatform/internal/auth"
	"github.com/siahsang/blogplatform/internal/data"
	"github.com/siahsang/blogplatform/internal/filter"
	"github.com/siahsang/blogplatform/internal/validator"
	"github.com/siahsang/blogplatform/models"
)

// CommentInput is a public submission. Status is accepted for compatibility
// and ignored: every new comment starts pending.
type CommentInput struct {
	Post    int64
	Author  string
	Email   string
	Content string
	Status  string
}

// CommentVisibility restricts non-staff readers to approved comments.
func CommentVisibility(viewer *auth.User) filter.Cond {
	if isStaff(viewer) {
		return nil
	}
	return filter.Eq(filter.CommentStatus, models.CommentApproved)
}

func (c *Core) CreateComment(ctx context.Context, in CommentInput) (*models.Comment, error) {
	comment := &models.Comment{
		PostID:      in.Post,
		AuthorName:  strings.TrimSpace(in.Author),
		AuthorEmail: strings.ToLower(strings.TrimSpace(in.Email)),
		Content:     strings.TrimSpace(in.Content),
		Status:      models.CommentPending,
	}

	v := validator.New()
	v.Check(comment.PostID > 0, "post", "This field is required.")
	v.CheckNotBlank(comment.AuthorName, "author", "This field may not be blank.")
	v.CheckMaxLength(comment.AuthorName, 100, "author", "Ensure this field has no more than 100 characters.")
	v.CheckNotBlank(comment.AuthorEmail, "email", "This field may not be blank.")
	v.CheckEmail(comment.AuthorEmail, "email", "Enter a valid email address.")
	v.CheckNotBlank(comment.Content, "content", "This field may not be blank.")
	v.CheckMaxLength(comment.Content, 5000, "content", "Ensure this field has no more than 5000 characters.")
	if err := validationError(v); err != nil {
		return nil, err
	}

	err := c.inTx(ctx, func(txCtx context.Context) error {
		_, err := c.models.Posts.Get(txCtx, filter.And(
			filter.Eq(filter.PostID, comment.PostID),
			filter.Eq(filter.PostStatus, models.PostPublished),
		))
		if errors.Is(err, data.ErrRecordNotFound) {
			return fieldError("post", fmt.Sprintf(`Invalid pk "%d" - object does not exist.`, comment.PostID))
		}
		if err != nil {
			return err
		}
		return c.models.Comments.Insert(txCtx, comment)
	})
	if err != nil {
		return nil, storeError(err)
	}

	c.log.Info("comment submitted", "comment_id", comment.ID, "post_id", comment.PostID)
	return comment, nil
}

func (c *Core) GetComment(ctx context.Context, viewer *auth.User, id int64) (*models.Comment, error) {
	comment, err := c.models.Comments.Get(ctx, filter.And(CommentVisibility(viewer), filter.Eq(filter.CommentID, id)))
	if err != nil {
		return nil, storeError(err)
	}
	return comment, nil
}

func (c *Core) ListComments(ctx context.Context, viewer *auth.User, where filter.Cond, orders []filter.Order, page filter.Page) (*Page[*models.Comment], error) {
	comments, total, err := c.models.Comments.List(ctx, filter.And(CommentVisibility(viewer), where), orders, page)
	if err != nil {
		return nil, err
	}
	return &Page[*models.Comment]{Items: comments, Total: total}, nil
}

// PostComments lists the approved comments of a post the viewer can see.
func (c *Core) PostComments(ctx context.Context, viewer *auth.User, slug string, page filter.Page) (*Page[*models.Comment], error) {
	post, err := c.models.Posts.Get(ctx, filter.And(PostVisibility(viewer), filter.Eq(filter.PostSlug, slug)))
	if err != nil {
		return nil, storeError(err)
	}
	where := filter.And(
		filter.Eq(filter.CommentPostID, post.ID),
		filter.Eq(filter.CommentStatus, models.CommentApproved),
	)
	comments, total, err := c.models.Comments.List(ctx, where, filter.CommentOrdering.Default, page)
	if err != nil {
		return nil, err
	}
	return &Page[*models.Comment]{Items: comments, Total: total}, nil
}

func (c *Core) ApproveComment(ctx context.Context, viewer *auth.User, id int64) (*models.Comment, error) {
	return c.moderate(ctx, viewer, id, models.CommentApproved)
}

func (c *Core) RejectComment(ctx context.Context, viewer *auth.User, id int64) (*models.Comment, error) {
	return c.moderate(ctx, viewer, id, models.CommentRejected)
}

func (c *Core) ResetComment(ctx context.Context, viewer *auth.User, id int64) (*models.Comment, error) {
	return c.moderate(ctx, viewer, id, models.CommentPending)
}

// moderate moves a comment to status to. The write is conditional on the
// status that was read, so two moderators racing on the same comment cannot
// both succeed.
func (c *Core) moderate(ctx context.Context, viewer *auth.User, id int64, to models.CommentStatus) (*models.Comment, error) {
	if !isStaff(viewer) {
		return nil, xerrors.New(ErrForbidden)
	}

	comment, err := c.models.Comments.Get(ctx, filter.Eq(filter.CommentID, id))
	if err != nil {
		return nil, storeError(err)
	}
	from := comment.Status
	if !CanTransition(from, to) {
		return nil, &ValidationError{Fields: map[string]string{
			"status": fmt.Sprintf("Cannot change a %s comment to %s.", from, to),
		}}
	}

	at := c.now()
	if err := c.models.Comments.UpdateStatus(ctx, id, from, to, at); err != nil {
		if errors.Is(err, data.ErrEditConflict) {
			return nil, fieldError("status", "The comment was moderated concurrently, please retry.")
		}
		return nil, storeError(err)
	}
	comment.Status = to
	comment.UpdatedAt = at

	c.log.Info("comment moderated", "comment_id", id, "from", from, "to", to, "by", viewer.ID)
	return comment, nil
}

func (c *Core) DeleteComment(ctx context.Context, viewer *auth.User, id int64) error {
	if !isStaff(viewer) {
		return xerrors.New(ErrForbidden)
	}
	return storeError(c.models.Comments.Delete(ctx, id))
}
