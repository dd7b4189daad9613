package web

import "net/http"

// Kind tells how a Result is answered.
type Kind int

const (
	// KindOK is a successful answer with a text body or a page.
	KindOK Kind = iota
	// KindRedirect sends the client to Location.
	KindRedirect
	// KindRejected is a refusal with a status code and a text body or page.
	KindRejected
)

// Result is the outcome of handling a request, independent of HTTP
// plumbing. At most one of Text, Page and HTML is used as the body.
type Result struct {
	Kind     Kind
	Status   int
	Text     string
	Page     Page
	HTML     []byte
	Location string
}

// OK answers 200 with a plain text body (possibly empty).
func OK(text string) Result {
	return Result{Kind: KindOK, Status: http.StatusOK, Text: text}
}

// OKPage answers 200 with a rendered page.
func OKPage(p Page) Result {
	return Result{Kind: KindOK, Status: http.StatusOK, Page: p}
}

// OKHTML answers 200 with an already rendered document.
func OKHTML(body []byte) Result {
	return Result{Kind: KindOK, Status: http.StatusOK, HTML: body}
}

// Redirect answers 303 See Other to location.
func Redirect(location string) Result {
	return Result{Kind: KindRedirect, Status: http.StatusSeeOther, Location: location}
}

// Reject answers status with a plain text body (possibly empty).
func Reject(status int, text string) Result {
	return Result{Kind: KindRejected, Status: status, Text: text}
}

// RejectPage answers status with a rendered page.
func RejectPage(status int, p Page) Result {
	return Result{Kind: KindRejected, Status: status, Page: p}
}
