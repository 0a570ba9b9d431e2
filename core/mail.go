package core

import (
	"bytes"
	"embed"
	"encoding/base64"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

//go:embed templates/email/*
var emailTemplatesFS embed.FS

const emailTemplatesDir = "templates/email"

type (
	tmplCacheEntry map[string]interface{}    // {ext: *Template}
	tmplCache      map[string]tmplCacheEntry // {name: {tmplCacheEntry}}

	Attachment struct {
		Content     *bytes.Buffer
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// MailTemplates parses the embedded email templates once, on first use.
type MailTemplates struct {
	appName         string
	frontendBaseURL string
	strict          bool // fail on missing keys

	once      sync.Once
	templates tmplCache
	err       error
}

func NewMailTemplates(conf *Config) *MailTemplates {
	return &MailTemplates{
		appName:         conf.AppName,
		frontendBaseURL: conf.Server.FrontendBaseURL,
		strict:          conf.Debug || conf.TestMode,
	}
}

func (t *MailTemplates) get(name, ext string) (interface{}, bool, error) {
	t.once.Do(t.parse)
	if t.err != nil {
		return nil, false, t.err
	}
	entry, ok := t.templates[name]
	if !ok {
		return nil, false, nil
	}
	tmpl, ok := entry[ext]
	return tmpl, ok, nil
}

func (t *MailTemplates) parse() {
	t.templates = make(tmplCache)

	fps, err := fs.Glob(emailTemplatesFS, emailTemplatesDir+"/*")
	if err != nil {
		t.err = errors.Wrap(err, "listing email templates")
		return
	}

	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := t.templates[name]
		if !ok {
			entry = make(tmplCacheEntry)
			t.templates[name] = entry
		}
		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(emailTemplatesFS, emailTemplatesDir+"/_base.txt", fp)
			if err != nil {
				t.err = errors.Wrapf(err, "parsing %s", fname)
				return
			}
			if t.strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry[ext] = tmpl
		} else {
			tmpl, err := htmltmpl.ParseFS(emailTemplatesFS, emailTemplatesDir+"/_base.gohtml", fp)
			if err != nil {
				t.err = errors.Wrapf(err, "parsing %s", fname)
				return
			}
			if t.strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry[ext] = tmpl
		}
	}
}

func (m *EmailMessage) contextData(t *MailTemplates) ContextData {
	return ContextData{
		AppName:         t.appName,
		FrontendBaseURL: t.frontendBaseURL,
		Data:            m.TemplateData,
	}
}

func (m *EmailMessage) renderText(t *MailTemplates) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	entry, ok, err := t.get(m.TemplateName, ".txt")
	if err != nil || !ok {
		return err
	}
	tmpl, ok := entry.(*texttmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, m.contextData(t)); err != nil {
		return err
	}
	m.TextContent = buff.String()
	return nil
}

func (m *EmailMessage) renderHTML(t *MailTemplates) error {
	if m.TemplateName == "" {
		return nil
	}

	entry, ok, err := t.get(m.TemplateName, ".gohtml")
	if err != nil || !ok {
		return err
	}
	tmpl, ok := entry.(*htmltmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, m.contextData(t)); err != nil {
		return err
	}
	m.HTMLContent = buff.String()
	return nil
}

func (m *EmailMessage) Render(t *MailTemplates) error {
	if err := m.renderText(t); err != nil {
		return err
	}
	return m.renderHTML(t)
}

func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}
	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err := encoder.Write(content); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }
