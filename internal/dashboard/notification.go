package dashboard

// Level is a toast severity.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// NetworkErrorMessage is the generic toast shown when data could not be
// fetched.
const NetworkErrorMessage = "Network Error"

// Notification is a toast the client should show next to the response.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

func success(msg string) Notification { return Notification{Level: LevelSuccess, Message: msg} }
func warning(msg string) Notification { return Notification{Level: LevelWarning, Message: msg} }
func failure(msg string) Notification { return Notification{Level: LevelError, Message: msg} }
