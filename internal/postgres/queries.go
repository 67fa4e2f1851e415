package postgres

const (
	queryRolePermissions = `
		SELECT sender_role, receiver_role
		FROM role_permissions
		ORDER BY sender_role, receiver_role;
	`
	queryUserRole = `
		SELECT role
		FROM users
		WHERE id::text = $1;
	`
	queryMessageParties = `
		SELECT id::text, sender_id::text, receiver_id::text
		FROM messages
		WHERE id::text = $1;
	`
)
