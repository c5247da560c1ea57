package types

type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type Author struct {
	Name  string `json:"name"`
	Books uint32 `json:"books"`
}

type Book struct {
	Id       string   `json:"id"`
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Genres   []string `json:"genres"`
	Language string   `json:"language"`
	Issued   string   `json:"issued"`
	About    string   `json:"about"`
	EpubUrl  string   `json:"epub_url"`
	Cover    string   `json:"cover_url"`
	Path     string   `json:"downloaded_path,omitempty"`
}

// DownloadTarget is one matched book, resolved to the place its EPUB is saved to.
type DownloadTarget struct {
	Id    string `json:"id,omitempty"`
	Title string `json:"title"`
	Url   string `json:"url"`
	Path  string `json:"path"`
}
