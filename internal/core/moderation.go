package core

import "github.com/siahsang/blogplatform/models"

// Moderation is a small state machine. A comment leaves pending only through
// approve or reject, and goes back to pending through reset. Approved and
// rejected never switch directly.
var transitions = map[models.CommentStatus][]models.CommentStatus{
	models.CommentPending:  {models.CommentApproved, models.CommentRejected},
	models.CommentApproved: {models.CommentPending},
	models.CommentRejected: {models.CommentPending},
}

func CanTransition(from, to models.CommentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
