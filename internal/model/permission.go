package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionProblemsWrite allows authoring and replacing problems.
	PermissionProblemsWrite Permission = "problems:write"

	// PermissionProblemsBulk allows creating many problems in one run.
	PermissionProblemsBulk Permission = "problems:bulk_create"
)
