package notify

import (
	"bytes"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// Each message type has a plain-text and an HTML rendering fed from the same
// data, so both carry identical information.

const staffSubject = `New Reservation: {{.Name}} - {{.DateLong}} at {{.TimeLabel}}`

const staffText = `NEW RESERVATION - ACTION REQUIRED

A new table reservation has been submitted on the website.

Customer:          {{.Name}}
Phone:             {{.Phone}}
Email:             {{.EmailOrNone}}
Party size:        {{.PartySize}} {{.GuestWord}}
Date:              {{.DateLong}}
Time:              {{.TimeLabel}}
Special requests:  {{.RequestsOrNone}}
Status:            {{.Status}}
Reservation ID:    {{.ID}}
Submitted:         {{.Submitted}}

ACTION REQUIRED: call the customer to confirm, then update the reservation
in the admin dashboard: {{.AdminURL}}
`

const staffHTML = `<!DOCTYPE html>
<html><head><meta charset="UTF-8"><title>New Reservation</title></head>
<body style="font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;color:#333;max-width:600px;margin:0 auto;padding:20px">
<div style="background:#b91c1c;color:#fff;padding:20px;border-radius:8px 8px 0 0">
<h1 style="margin:0;font-size:22px">New Reservation - ACTION REQUIRED</h1>
</div>
<div style="border:1px solid #e5e7eb;border-top:none;padding:20px">
<p>A new table reservation has been submitted on the website.</p>
<table style="width:100%;border-collapse:collapse">
<tr><td style="color:#6b7280;padding:6px 0">Customer</td><td style="font-weight:600">{{.Name}}</td></tr>
<tr><td style="color:#6b7280;padding:6px 0">Phone</td><td style="font-weight:600"><a href="tel:{{.Phone}}">{{.Phone}}</a></td></tr>
<tr><td style="color:#6b7280;padding:6px 0">Email</td><td style="font-weight:600">{{.EmailOrNone}}</td></tr>
<tr><td style="color:#6b7280;padding:6px 0">Party size</td><td style="font-weight:600">{{.PartySize}} {{.GuestWord}}</td></tr>
<tr><td style="color:#6b7280;padding:6px 0">Date</td><td style="font-weight:600">{{.DateLong}}</td></tr>
<tr><td style="color:#6b7280;padding:6px 0">Time</td><td style="font-weight:600">{{.TimeLabel}}</td></tr>
<tr><td style="color:#6b7280;padding:6px 0">Special requests</td><td style="font-weight:600">{{.RequestsOrNone}}</td></tr>
<tr><td style="color:#6b7280;padding:6px 0">Status</td><td style="font-weight:600">{{.Status}}</td></tr>
<tr><td style="color:#6b7280;padding:6px 0">Reservation ID</td><td style="font-weight:600">{{.ID}}</td></tr>
<tr><td style="color:#6b7280;padding:6px 0">Submitted</td><td style="font-weight:600">{{.Submitted}}</td></tr>
</table>
<p style="background:#fef2f2;padding:12px;border-radius:6px"><strong>ACTION REQUIRED:</strong> call the customer to confirm, then update the reservation in the <a href="{{.AdminURL}}">admin dashboard</a>.</p>
</div>
</body></html>
`

const customerSubject = `Reservation Request Received - {{.Restaurant}}`

const customerText = `Dear {{.Name}},

Thank you for choosing {{.Restaurant}}. We have received your reservation request.

Date:              {{.DateLong}}
Time:              {{.TimeLabel}}
Party size:        {{.PartySize}} {{.GuestWord}}
Special requests:  {{.RequestsOrNone}}

What happens next:
- Our team will call you on {{.Phone}} to confirm your table.
- Your reservation is confirmed only after that call.
{{- if .RestaurantPhone}}
- To change or cancel, call us on {{.RestaurantPhone}}.
{{- end}}

We look forward to serving you.

{{.Restaurant}}
`

const customerHTML = `<!DOCTYPE html>
<html><head><meta charset="UTF-8"><title>Reservation Request Received</title></head>
<body style="font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;color:#333;max-width:600px;margin:0 auto;padding:20px">
<div style="background:#92400e;color:#fff;padding:20px;border-radius:8px 8px 0 0">
<h1 style="margin:0;font-size:22px">{{.Restaurant}}</h1>
</div>
<div style="border:1px solid #e5e7eb;border-top:none;padding:20px">
<p>Dear {{.Name}},</p>
<p>Thank you for choosing {{.Restaurant}}. We have received your reservation request.</p>
<table style="width:100%;border-collapse:collapse">
<tr><td style="color:#6b7280;padding:6px 0">Date</td><td style="font-weight:600">{{.DateLong}}</td></tr>
<tr><td style="color:#6b7280;padding:6px 0">Time</td><td style="font-weight:600">{{.TimeLabel}}</td></tr>
<tr><td style="color:#6b7280;padding:6px 0">Party size</td><td style="font-weight:600">{{.PartySize}} {{.GuestWord}}</td></tr>
<tr><td style="color:#6b7280;padding:6px 0">Special requests</td><td style="font-weight:600">{{.RequestsOrNone}}</td></tr>
</table>
<h2 style="font-size:16px">What happens next</h2>
<ul>
<li>Our team will call you on {{.Phone}} to confirm your table.</li>
<li>Your reservation is confirmed only after that call.</li>
{{- if .RestaurantPhone}}
<li>To change or cancel, call us on {{.RestaurantPhone}}.</li>
{{- end}}
</ul>
<p>We look forward to serving you.</p>
</div>
</body></html>
`

type rendering struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

var (
	staffTemplates = rendering{
		subject: texttemplate.Must(texttemplate.New("staff_subject").Parse(staffSubject)),
		text:    texttemplate.Must(texttemplate.New("staff_text").Parse(staffText)),
		html:    htmltemplate.Must(htmltemplate.New("staff_html").Parse(staffHTML)),
	}
	customerTemplates = rendering{
		subject: texttemplate.Must(texttemplate.New("customer_subject").Parse(customerSubject)),
		text:    texttemplate.Must(texttemplate.New("customer_text").Parse(customerText)),
		html:    htmltemplate.Must(htmltemplate.New("customer_html").Parse(customerHTML)),
	}
)

func (r rendering) render(data messageData) (subject, text, html string, err error) {
	var sb, tb, hb bytes.Buffer
	if err = r.subject.Execute(&sb, data); err != nil {
		return
	}
	if err = r.text.Execute(&tb, data); err != nil {
		return
	}
	if err = r.html.Execute(&hb, data); err != nil {
		return
	}
	return sb.String(), tb.String(), hb.String(), nil
}
