package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/campusbites/campus-bites/models"
	"github.com/campusbites/campus-bites/utils"
)

// Event types
const (
	EventOrderCreated       = "order_created"
	EventOrderUpdate        = "order_update"
	EventNotificationNew    = "notification_new"
	EventNotificationUpdate = "notification_update"
	EventPaymentPending     = "payment_pending"
	EventPaymentUpdate      = "payment_update"
	EventPaymentSuccess     = "payment_success"
	EventVendorUpdate       = "vendor_update"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	role   string
	userID uint
}

// Hub holds every connected websocket client (students, vendors, admins) and
// fans events out to them.
type Hub struct {
	clients map[*websocket.Conn]client
	mutex   sync.Mutex
}

var hub = Hub{
	clients: make(map[*websocket.Conn]client),
}

// RegisterClient adds a connection with its role and user identity.
func RegisterClient(conn *websocket.Conn, role string, userID uint) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	hub.clients[conn] = client{role: role, userID: userID}
}

// UnregisterClient drops a connection and closes it.
func UnregisterClient(conn *websocket.Conn) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	delete(hub.clients, conn)
	conn.Close()
}

// BroadcastOrderCreated announces a new order to every client.
func BroadcastOrderCreated(order models.Order) {
	broadcast(Message{Event: EventOrderCreated, Data: order}, nil)
}

// BroadcastOrderUpdate announces an order status change to every client.
func BroadcastOrderUpdate(order models.Order) {
	broadcast(Message{Event: EventOrderUpdate, Data: order}, nil)
}

// SendNotification delivers a notification insert to its recipient only.
func SendNotification(notif models.Notification) {
	recipient := notif.RecipientID
	broadcast(Message{Event: EventNotificationNew, Data: notif}, &recipient)
}

// SendNotificationUpdate delivers a notification patch (e.g. read flag) to its
// recipient only.
func SendNotificationUpdate(notif models.Notification) {
	recipient := notif.RecipientID
	broadcast(Message{Event: EventNotificationUpdate, Data: notif}, &recipient)
}

// BroadcastPaymentPending announces a freshly initiated payment.
func BroadcastPaymentPending(payment models.Payment) {
	broadcast(Message{Event: EventPaymentPending, Data: payment}, nil)
}

// BroadcastPaymentUpdate announces a payment status change.
func BroadcastPaymentUpdate(payment models.Payment) {
	broadcast(Message{Event: EventPaymentUpdate, Data: payment}, nil)
}

// BroadcastPaymentSuccess announces a settled payment.
func BroadcastPaymentSuccess(payment models.Payment) {
	broadcast(Message{Event: EventPaymentSuccess, Data: payment}, nil)
}

// BroadcastVendorUpdate announces a vendor profile/availability change.
func BroadcastVendorUpdate(vendor models.Vendor) {
	broadcast(Message{Event: EventVendorUpdate, Data: vendor}, nil)
}

// broadcast sends msg to all clients, or only to the client(s) matching
// recipientID when it is non-nil.
func broadcast(msg Message, recipientID *uint) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Printf("Error marshaling message: %v", err)
		return
	}

	for conn, cl := range hub.clients {
		if recipientID != nil && cl.userID != *recipientID {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.Printf("Error sending %s to client (role=%s): %v", msg.Event, cl.role, err)
		}
	}
}
