package services

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"log"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
)

//go:embed templates/certificate.html
var certificateFS embed.FS

var certificateTmpl = template.Must(template.ParseFS(certificateFS, "templates/certificate.html"))

var ErrNotPassed = &Error{Kind: KindInvalidState, Message: "certificate is only available for passed tests"}

type PDFRenderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// ChromePDFRenderer prints HTML through a headless Chrome instance.
type ChromePDFRenderer struct {
	Timeout time.Duration
}

func (r ChromePDFRenderer) Render(ctx context.Context, htmlContent string) ([]byte, error) {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx, cancelChrome := chromedp.NewContext(ctx)
	defer cancelChrome()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).WithLandscape(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}

type CertificateService struct {
	sessions *SessionService
	users    *UserDirectory
	renderer PDFRenderer
}

func NewCertificateService(sessions *SessionService, users *UserDirectory, renderer PDFRenderer) *CertificateService {
	return &CertificateService{sessions: sessions, users: users, renderer: renderer}
}

// Generate renders the PDF certificate of a passed session owned by userID.
func (s *CertificateService) Generate(ctx context.Context, userID, sessionID uuid.UUID) ([]byte, error) {
	result, err := s.sessions.GetResult(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !result.Passed {
		return nil, ErrNotPassed
	}
	user, err := s.users.FindActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	htmlData, err := RenderCertificateHTML(user.FullName, *result)
	if err != nil {
		return nil, wrapErr("render certificate", err)
	}
	pdf, err := s.renderer.Render(ctx, htmlData)
	if err != nil {
		log.Printf("🔥 Failed to generate certificate PDF for session %s: %v", sessionID, err)
		return nil, wrapErr("print certificate", err)
	}
	log.Printf("✅ Generated certificate for session %s", sessionID)
	return pdf, nil
}

func RenderCertificateHTML(fullName string, result DetailedResult) (string, error) {
	data := struct {
		FullName       string
		Topic          string
		CorrectCount   int
		TotalQuestions int
		Percentage     float64
		CompletionDate string
		SessionID      string
	}{
		FullName:       fullName,
		Topic:          result.Topic,
		CorrectCount:   result.CorrectCount,
		TotalQuestions: result.TotalQuestions,
		Percentage:     result.Percentage,
		CompletionDate: result.FinishedAt.Format("January 2, 2006"),
		SessionID:      result.SessionID.String(),
	}

	var rendered bytes.Buffer
	if err := certificateTmpl.Execute(&rendered, data); err != nil {
		return "", err
	}
	return rendered.String(), nil
}
