package constants

// Static route constants
const (
	HomeRoute         = "/"
	LoginRoute        = "/login"
	RegisterRoute     = "/register"
	UserSettingsRoute = "/user/settings"
)
