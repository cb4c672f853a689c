package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden        ErrCode = "FORBIDDEN"
	ErrPermissionDenied ErrCode = "PERMISSION_DENIED"
	ErrNotDraftOwner    ErrCode = "NOT_DRAFT_OWNER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound      ErrCode = "NOT_FOUND"
	ErrDraftNotFound ErrCode = "DRAFT_NOT_FOUND"
	ErrConflict      ErrCode = "CONFLICT"

	// ─── Authoring ─────────────────────────────────────────────────────
	ErrConfirmationRequired ErrCode = "CONFIRMATION_REQUIRED"
	ErrFieldReadOnly        ErrCode = "FIELD_READ_ONLY"
	ErrDuplicateTestcase    ErrCode = "DUPLICATE_TESTCASE"
	ErrIncompleteTestcases  ErrCode = "INCOMPLETE_TESTCASES"
	ErrTestcaseNotFound     ErrCode = "TESTCASE_NOT_FOUND"
	ErrParsedReadOnly       ErrCode = "PARSED_TESTCASE_READ_ONLY"
	ErrTitleRequired        ErrCode = "TITLE_REQUIRED"
	ErrInvalidFormat        ErrCode = "INVALID_FORMAT_COMMAND"
	ErrRelinkPending        ErrCode = "RELINK_PENDING"

	// ─── Upstream ──────────────────────────────────────────────────────
	ErrUpstream ErrCode = "UPSTREAM_ERROR"

	// ─── Files ─────────────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have access to this resource."
	case ErrPermissionDenied:
		return "Permission denied."
	case ErrNotDraftOwner:
		return "This draft belongs to another author."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrDraftNotFound:
		return "Draft not found. It may have been closed or expired."
	case ErrConflict:
		return "Resource already exists."

	// ─── Authoring ─────────────────────────────────────────────────────
	case ErrConfirmationRequired:
		return "This action needs your confirmation."
	case ErrFieldReadOnly:
		return "This field cannot be changed in metadata-only mode."
	case ErrDuplicateTestcase:
		return "A testcase with this name already exists."
	case ErrIncompleteTestcases:
		return "Some testcases are missing their input or output."
	case ErrTestcaseNotFound:
		return "Testcase not found."
	case ErrParsedReadOnly:
		return "Testcases parsed from the archive cannot be edited."
	case ErrTitleRequired:
		return "Title is required."
	case ErrInvalidFormat:
		return "Invalid formatting command."
	case ErrRelinkPending:
		return "The problem was already created. Submit again to finish linking it before making changes."

	// ─── Upstream ──────────────────────────────────────────────────────
	case ErrUpstream:
		return "The problem service rejected the request."

	// ─── Files ─────────────────────────────────────────────────────────
	case ErrFileRequired:
		return "File upload is required."
	case ErrUnsupportedFile:
		return "Unsupported file type."
	case ErrFileTooLarge:
		return "File size exceeds the limit."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "Unexpected error."
	}
}
