package forum

// CanCreateThread reports whether id may open a thread in forumID.
func CanCreateThread(id Identity, forumID int) bool {
	if forumID != AnnouncementsForumID {
		return true
	}
	return id.Role.IsStaff()
}

// CanDeletePost reports whether id may delete post.
func CanDeletePost(id Identity, post Post) bool {
	if id.IsGuest || id.ID == GuestID {
		return false
	}
	if id.ID == post.AuthorID {
		return true
	}
	return id.Role.IsStaff()
}

// RequiresReason reports whether a deletion by id of a post written by
// authorUsername must carry a reason.
func RequiresReason(id Identity, authorUsername string) bool {
	return id.Role.IsStaff() && id.Username != authorUsername
}

// CanUndo reports whether id may restore the newest deletion of post.
// Authors undo their own deletions; staff undo only deletions they made.
func CanUndo(id Identity, post Post) bool {
	if !post.Deleted() || id.IsGuest {
		return false
	}
	last, ok := post.LastDeletion()
	if !ok {
		return false
	}
	if last.DeletedBy == DeletedBySelf {
		return last.DeleterID == id.ID
	}
	if last.DeleterID != id.ID {
		return false
	}
	return id.Role.IsStaff()
}
