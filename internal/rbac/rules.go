package rbac

// Permissions are "<resource>:<action>"; a trailing * matches any action.
const (
	PermQuizCreate     = "quiz:create"
	PermQuizGenerate   = "quiz:generate"
	PermQuizManageOwn  = "quiz:manage_own"
	PermQuizJoin       = "quiz:join"
	PermAttemptCreate  = "attempt:create"
	PermAttemptSave    = "attempt:save"
	PermAttemptSubmit  = "attempt:submit"
	PermAttemptViewOwn = "attempt:view_own"
	PermAttemptReview  = "attempt:review"
	PermProfileEdit    = "profile:edit"
)

var RolePermissions = map[string][]string{
	"student": {
		PermQuizJoin,
		PermAttemptCreate,
		PermAttemptSave,
		PermAttemptSubmit,
		PermAttemptViewOwn,
		PermProfileEdit,
	},
	"teacher": {
		PermQuizCreate,
		PermQuizGenerate,
		PermQuizManageOwn,
		PermAttemptReview,
		PermProfileEdit,
	},
}
