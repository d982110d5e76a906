package utils

import (
	"bytes"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"

	"github.com/pielancer314/PizzaForPi/logger"
	"github.com/pielancer314/PizzaForPi/model"
	"github.com/pielancer314/PizzaForPi/orders"
)

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// AppURL prefixes the tracking link in every mail.
	AppURL string
}

// OrderMailData is what the order templates render.
type OrderMailData struct {
	Username    string
	OrderID     string
	Status      model.OrderStatus
	Items       []model.OrderItem
	TotalAmount float64
	TrackingURL string
}

var orderMailTemplates = map[orders.Notification]struct {
	subject string
	body    *template.Template
}{
	orders.NotifyPlaced: {
		subject: "Your PizzaForPi order #%s",
		body: template.Must(template.New("placed").Parse(`<p>Hi {{.Username}},</p>
<p>We received your order <b>#{{.OrderID}}</b>.</p>
<ul>{{range .Items}}<li>{{.Quantity}} x {{.Name}} ({{printf "%.2f" .UnitPrice}} π)</li>{{end}}</ul>
<p>Total: <b>{{printf "%.2f" .TotalAmount}} π</b></p>
<p><a href="{{.TrackingURL}}">Track your order</a></p>`)),
	},
	orders.NotifyCancelled: {
		subject: "Order #%s was cancelled",
		body: template.Must(template.New("cancelled").Parse(`<p>Hi {{.Username}},</p>
<p>Your order <b>#{{.OrderID}}</b> was cancelled. Any pending payment has been released.</p>
<p><a href="{{.TrackingURL}}">Order details</a></p>`)),
	},
	orders.NotifyDelivered: {
		subject: "Order #%s delivered",
		body: template.Must(template.New("delivered").Parse(`<p>Hi {{.Username}},</p>
<p>Your order <b>#{{.OrderID}}</b> has been delivered. Enjoy your meal!</p>
<p><a href="{{.TrackingURL}}">Rate your order</a></p>`)),
	},
}

// Mailer sends order e-mails over SMTP. Sending happens in the background;
// failures are logged and otherwise ignored.
type Mailer struct {
	cfg  MailConfig
	log  logger.ILogger
	send func(m *gomail.Message) error
}

var _ orders.Notifier = (*Mailer)(nil)

func NewMailer(cfg MailConfig, log logger.ILogger) *Mailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &Mailer{
		cfg:  cfg,
		log:  log.With(logger.String("component", "mailer")),
		send: func(m *gomail.Message) error { return d.DialAndSend(m) },
	}
}

func (m *Mailer) Notify(to model.User, kind orders.Notification, o *model.Order) {
	msg, err := m.compose(to, kind, o)
	if err != nil {
		m.log.Error("render order mail", logger.String("order", o.ID), logger.Any("kind", kind), logger.Error(err))
		return
	}
	go func() {
		if err := m.send(msg); err != nil {
			m.log.Warning("send order mail", logger.String("order", o.ID), logger.String("to", to.Email), logger.Error(err))
		}
	}()
}

func (m *Mailer) compose(to model.User, kind orders.Notification, o *model.Order) (*gomail.Message, error) {
	tmpl, ok := orderMailTemplates[kind]
	if !ok {
		return nil, fmt.Errorf("no template for %q", kind)
	}

	var body bytes.Buffer
	err := tmpl.body.Execute(&body, OrderMailData{
		Username:    to.Username,
		OrderID:     o.ID,
		Status:      o.Status,
		Items:       o.Items,
		TotalAmount: o.TotalAmount,
		TrackingURL: TrackingURL(m.cfg.AppURL, o.ID),
	})
	if err != nil {
		return nil, err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to.Email)
	msg.SetHeader("Subject", fmt.Sprintf(tmpl.subject, o.ID))
	msg.SetBody("text/html", body.String())
	return msg, nil
}
