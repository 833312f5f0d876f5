// Package session is the HTTP layer shared by scraping sources: a cookie
// carrying client bound to one shop, with content sniffing of responses and
// cookie persistence so a logged-in session survives between runs.
//
// Transport failures do not surface as Go errors. Like the shops' own status
// codes they are reported through Response.StatusCode, using
// StatusTooManyRedirects and StatusConnectionError. Do only returns an error
// for malformed requests and context cancellation.
package session
