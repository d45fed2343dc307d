package types

type LoginPageData struct {
	Title string
	Error string
}

type BoardPageData struct {
	Title   string
	Notices []*Notice
}

type AdminPageData struct {
	Title   string
	Error   string
	Notices []*Notice
}
