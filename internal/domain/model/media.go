package model

// MediaType is the Overseerr media kind of a TMDb id.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// SearchResult is a single Overseerr search hit.
type SearchResult struct {
	TMDbID      int
	Title       string
	MediaType   string // "movie", "tv" or "person" as reported by Overseerr.
	ReleaseYear string // "?" when unknown.
	Overview    string
}

// RequestStatus is the result of submitting a media request.
type RequestStatus string

const (
	RequestStatusCreated          RequestStatus = "created"
	RequestStatusAlreadyRequested RequestStatus = "already_requested"
)

// RequestResult describes an accepted (or duplicate) media request.
type RequestResult struct {
	TMDbID    int
	MediaType MediaType
	Status    RequestStatus
}
