package view

type LoginPageModel struct {
	ErrorMessage string
	StoryToken   string
}

// LoginPage maps an auth error code from the query string to the
// message shown above the form. The credentials code gets a friendly
// message; anything else is surfaced as-is.
func LoginPage(code, storyToken string) LoginPageModel {
	m := LoginPageModel{StoryToken: storyToken}

	switch code {
	case "":
		// no error
	case "credentials":
		m.ErrorMessage = "Invalid credentials. Please try again."
	default:
		m.ErrorMessage = code
	}

	return m
}
