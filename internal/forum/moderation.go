package forum

import (
	"errors"
	"strings"
	"time"
)

// DeletedContent replaces the body of a deleted post.
const DeletedContent = "<i>deleted</i>"

var (
	ErrAlreadyDeleted = errors.New("post already deleted")
	ErrForbidden      = errors.New("not allowed")
	ErrReasonRequired = errors.New("deletion reason is required")
	ErrNothingToUndo  = errors.New("post has no deletion to undo")
)

// DeletePost returns post as deleted by id. The original content moves into
// the deletion log so UndoDelete can bring it back.
func DeletePost(post Post, id Identity, reason string, now time.Time) (Post, error) {
	if post.Deleted() {
		return post, ErrAlreadyDeleted
	}
	if !CanDeletePost(id, post) {
		return post, ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if RequiresReason(id, post.AuthorUsername) && reason == "" {
		return post, ErrReasonRequired
	}

	by := DeletedByModerator
	switch {
	case id.ID == post.AuthorID:
		by = DeletedBySelf
	case id.Role == RoleAdmin:
		by = DeletedByAdmin
	}

	entry := DeletionEntry{
		DeletedBy:      by,
		DeleterID:      id.ID,
		DeletedContent: post.Content,
		DeletedOn:      now.UTC(),
	}
	if by != DeletedBySelf {
		entry.Reason = &reason
	}

	var older []DeletionEntry
	if post.DeletionLog != nil {
		older = post.DeletionLog.Log
	}
	log := make([]DeletionEntry, 0, len(older)+1)
	log = append(log, entry)
	log = append(log, older...)

	post.Content = DeletedContent
	post.DeletionLog = &DeletionLog{Deleted: true, Log: log}
	return post, nil
}

// UndoDelete restores the content saved by the newest deletion and drops that
// entry. The post stays marked deleted while older entries remain.
func UndoDelete(post Post, id Identity) (Post, error) {
	last, ok := post.LastDeletion()
	if !ok || !post.Deleted() {
		return post, ErrNothingToUndo
	}
	if !CanUndo(id, post) {
		return post, ErrForbidden
	}

	remaining := append([]DeletionEntry(nil), post.DeletionLog.Log[1:]...)
	post.Content = last.DeletedContent
	post.DeletionLog = &DeletionLog{Deleted: len(remaining) > 0, Log: remaining}
	return post, nil
}
