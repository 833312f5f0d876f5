package session

import (
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
)

type cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type state struct {
	Domain  string   `json:"domain"`
	Cookies []cookie `json:"cookies"`
}

// Dumps serializes the cookies the jar would send to the session domain.
func (s *Session) Dumps() ([]byte, error) {
	st := state{Domain: s.Domain(), Cookies: []cookie{}}
	for _, c := range s.collector.Cookies(s.Domain()) {
		st.Cookies = append(st.Cookies, cookie{Name: c.Name, Value: c.Value})
	}
	raw, err := sonic.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode session state: %w", err)
	}
	return raw, nil
}

// Loads merges cookies produced by Dumps into the jar. Cookies with the same
// name are replaced.
func (s *Session) Loads(raw []byte) error {
	var st state
	if err := sonic.Unmarshal(raw, &st); err != nil {
		return fmt.Errorf("decode session state: %w", err)
	}
	if len(st.Cookies) == 0 {
		return nil
	}
	cookies := make([]*http.Cookie, 0, len(st.Cookies))
	for _, c := range st.Cookies {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	if err := s.collector.SetCookies(s.Domain(), cookies); err != nil {
		return fmt.Errorf("restore cookies: %w", err)
	}
	return nil
}
