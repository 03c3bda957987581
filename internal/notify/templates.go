package notify

import (
	"bytes"
	"html/template"
	"strings"
)

var templateFuncs = template.FuncMap{
	"join": strings.Join,
}

var bookingConfirmedTmpl = template.Must(template.New("booking_confirmed").Funcs(templateFuncs).Parse(`
<div style="max-width: 600px; margin: 0 auto; font-family: Arial, sans-serif; border: 1px solid #e0e0e0; border-radius: 8px; overflow: hidden;">
  <div style="background-color: #7b2cbf; color: white; padding: 20px; text-align: center;">
    <h1 style="margin: 0;">TicketShow Booking Confirmed!</h1>
  </div>
  <div style="padding: 24px; font-size: 16px; color: #333;">
    <h2 style="margin-top: 0;">Hi {{.Name}},</h2>
    <p>Your booking for <strong style="color: #7b2cbf;">"{{.Title}}"</strong> is confirmed.</p>
    <p>
      <strong>Date:</strong> {{.ShowDate}}<br>
      <strong>Time:</strong> {{.ShowTime}}
    </p>
    <p><strong>Booking ID:</strong> <span style="color: #7b2cbf;">{{.BookingID}}</span></p>
    <p><strong>Seats:</strong> {{if .Seats}}{{join .Seats ", "}}{{else}}N/A{{end}}</p>
    <p><strong>Amount:</strong> {{.Amount}}</p>
    <p>Enjoy the show and don't forget to grab your popcorn!</p>
  </div>
  {{if .Image}}<img src="{{.Image}}" alt="{{.Title}} Poster" style="width: 100%; max-height: 350px; object-fit: cover;" />{{end}}
  <div style="background-color: #f5f5f5; color: #777; padding: 16px; text-align: center; font-size: 14px;">
    <p style="margin: 0;">Thanks for booking with us!<br>The TicketShow Team</p>
    <p style="margin: 4px 0 0;">Visit us: <a href="{{.AppURL}}" style="color: #7b2cbf; text-decoration: none;">TicketShow</a></p>
  </div>
</div>`))

var showAddedTmpl = template.Must(template.New("show_added").Funcs(templateFuncs).Parse(`
<div style="max-width: 600px; margin: auto; font-family: Arial, sans-serif; border: 1px solid #ddd; border-radius: 8px; overflow: hidden;">
  <div style="background-color: #7b2cbf; color: white; padding: 20px; text-align: center;">
    <h1 style="margin: 0;">Hi {{.Name}},</h1>
  </div>
  <div style="padding: 24px; color: #333;">
    <h2 style="margin-top: 0;">"{{.Title}}" is Now Available on TicketShow!</h2>
    {{if .ReleaseDate}}<p><strong>Release Date:</strong> {{.ReleaseDate}}</p>{{end}}
    {{if .Genres}}<p><strong>Genre:</strong> {{join .Genres ", "}}</p>{{end}}
    {{if .Description}}<p>{{.Description}}</p>{{end}}
    {{if .Image}}<img src="{{.Image}}" alt="{{.Title}} Poster" style="width: 100%; max-height: 350px; object-fit: cover;" />{{end}}
    <div style="margin-top: 20px; text-align: center;">
      <a href="{{.BookURL}}" style="background-color: #7b2cbf; color: white; padding: 12px 20px; text-decoration: none; border-radius: 6px; font-weight: bold;">Book Your Tickets</a>
    </div>
  </div>
  <div style="background-color: #f5f5f5; color: #777; padding: 16px; text-align: center; font-size: 14px;">
    <p style="margin: 0;">Thanks for staying with TicketShow!<br>We bring the cinema to your fingertips.</p>
    <p style="margin: 4px 0 0;">Visit us: <a href="{{.AppURL}}" style="color: #7b2cbf; text-decoration: none;">TicketShow</a></p>
  </div>
</div>`))

type bookingConfirmedView struct {
	Name      string
	Title     string
	ShowDate  string
	ShowTime  string
	BookingID string
	Seats     []string
	Amount    string
	Image     string
	AppURL    string
}

type showAddedView struct {
	Name        string
	Title       string
	ReleaseDate string
	Genres      []string
	Description string
	Image       string
	BookURL     string
	AppURL      string
}

func render(tmpl *template.Template, view any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
