package model

import "time"

// Comment is either a root comment on an article (ParentCommentID nil) or a
// reply to another comment on the same article.
type Comment struct {
	ID              string    `json:"id"`
	ArticleID       string    `json:"articleId"`
	AuthorID        string    `json:"userId"`
	ParentCommentID *string   `json:"parentCommentId"`
	Text            string    `json:"text"`
	Likes           int       `json:"likes"`
	CreatedAt       time.Time `json:"createdAt"`
}

// IsRoot reports whether c starts a thread.
func (c *Comment) IsRoot() bool {
	return c.ParentCommentID == nil
}

// CommentThread is a comment together with its replies, each of which is
// itself a thread. Replies are in creation order.
type CommentThread struct {
	Comment
	Replies []CommentThread `json:"replies"`
}

// Size counts the comments in the thread, root included.
func (t CommentThread) Size() int {
	n := 1
	for _, r := range t.Replies {
		n += r.Size()
	}
	return n
}
