package domain

// User is a staff member tasks can be assigned to.
type User struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email,omitempty"`
}

func (u *User) CanBeNotified() bool {
	return u != nil && u.Email != ""
}

// FallbackUsers is served when neither the remote store nor the users cache
// can answer.
func FallbackUsers() []User {
	return []User{
		{ID: "1", FullName: "John Doe", Email: "john@example.com"},
		{ID: "2", FullName: "Jane Smith", Email: "jane@example.com"},
		{ID: "3", FullName: "Mike Johnson", Email: "mike@example.com"},
		{ID: "4", FullName: "Sarah Williams", Email: "sarah@example.com"},
		{ID: "5", FullName: "Robert Brown", Email: "robert@example.com"},
	}
}

// Notification is a best-effort message to a user about a task.
type Notification struct {
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
	TaskID  string `json:"task_id,omitempty"`
}
