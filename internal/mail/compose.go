package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

var (
	loginTmpl = template.Must(template.New("login").Parse(
		`Hello,<br /><br />You are receiving this email because a login has been requested for the Weather Station.<br />` +
			`Press the following link to authorize the request. <a href="{{.Link}}">Authorize Request.</a><br /><br />HAAK Weather Station`))

	registerTmpl = template.Must(template.New("register").Parse(
		`Hello,<br /><br />Your Weather Station Admin has generated a registration request for you.<br />` +
			`Press the following link to register for the web interface. <a href="{{.Link}}">Register.</a><br /><br />HAAK Weather Station`))
)

// Composer builds the login and registration emails for a site.
type Composer struct {
	base *url.URL
	from string
}

// NewComposer creates a Composer for the public site address, which may be a
// bare host ("weather.example.com") or a URL. Bare hosts are served over
// https.
func NewComposer(site string) (*Composer, error) {
	if !strings.Contains(site, "://") {
		site = "https://" + site
	}
	u, err := url.Parse(site)
	if err != nil {
		return nil, fmt.Errorf("parsing site url %q: %w", site, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("site url %q has no host", site)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	return &Composer{base: u, from: "weather@" + u.Hostname()}, nil
}

func (c *Composer) link(path, challenge string) string {
	u := *c.base
	u.Path += path
	u.RawQuery = url.Values{"c": {challenge}}.Encode()
	return u.String()
}

// Login builds the email that lets the recipient complete a login.
func (c *Composer) Login(to, challenge string) (Message, error) {
	return c.build(to, "Weather Station Login Attempt", loginTmpl, c.link("/verify_login", challenge))
}

// Registration builds the email that lets the recipient complete a registration.
func (c *Composer) Registration(to, challenge string) (Message, error) {
	return c.build(to, "Weather Station Registration", registerTmpl, c.link("/verify_register", challenge))
}

func (c *Composer) build(to, subject string, tmpl *template.Template, link string) (Message, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Link string }{link}); err != nil {
		return Message{}, fmt.Errorf("rendering %s email: %w", tmpl.Name(), err)
	}
	return Message{
		From:    c.from,
		To:      to,
		Subject: subject,
		HTML:    buf.String(),
	}, nil
}
