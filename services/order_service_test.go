package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/campusbites/campus-bites/models"
	"github.com/campusbites/campus-bites/utils"
)

func openOrderDB(t *testing.T, name string) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	assert.NoError(t, err)
	err = db.AutoMigrate(
		&models.User{},
		&models.Vendor{},
		&models.Tag{},
		&models.MenuItem{},
		&models.TimeSlot{},
		&models.Order{},
		&models.OrderItem{},
		&models.Notification{},
	)
	assert.NoError(t, err)
	return db
}

func seedOrderFixtures(t *testing.T, db *gorm.DB) (models.Vendor, models.MenuItem, models.TimeSlot) {
	owner := models.User{Name: "Mama Njeri", Email: "njeri@example.com", Phone: "0798765432", Password: "x", Role: "vendor"}
	assert.NoError(t, db.Create(&owner).Error)

	vendor := models.Vendor{OwnerID: owner.ID, Name: "Njeri's Kitchen", Open: true}
	assert.NoError(t, db.Create(&vendor).Error)

	chapati := models.MenuItem{VendorID: vendor.ID, Name: "Chapati", Price: 5.00, InStock: true}
	assert.NoError(t, db.Create(&chapati).Error)

	slot := models.TimeSlot{TimeOfDay: "12:30"}
	assert.NoError(t, db.Create(&slot).Error)

	return vendor, chapati, slot
}

func TestPriceOrderValidations(t *testing.T) {
	utils.InitLogger()
	db := openOrderDB(t, "order_pricing")
	vendor, chapati, _ := seedOrderFixtures(t, db)

	soldOut := models.MenuItem{VendorID: vendor.ID, Name: "Samosa", Price: 2.50, InStock: false}
	assert.NoError(t, db.Create(&soldOut).Error)

	otherOwner := models.User{Name: "Otieno", Email: "otieno@example.com", Phone: "0711222333", Password: "x", Role: "vendor"}
	assert.NoError(t, db.Create(&otherOwner).Error)
	otherVendor := models.Vendor{OwnerID: otherOwner.ID, Name: "Otieno Grill", Open: true}
	assert.NoError(t, db.Create(&otherVendor).Error)
	foreign := models.MenuItem{VendorID: otherVendor.ID, Name: "Mshikaki", Price: 30.00, InStock: true}
	assert.NoError(t, db.Create(&foreign).Error)

	svc := NewOrderService(db)

	tests := []struct {
		name  string
		items []OrderItemInput
	}{
		{"empty cart", nil},
		{"zero quantity", []OrderItemInput{{MenuItemID: chapati.ID, Quantity: 0}}},
		{"unknown item", []OrderItemInput{{MenuItemID: 9999, Quantity: 1}}},
		{"another vendor's item", []OrderItemInput{{MenuItemID: foreign.ID, Quantity: 1}}},
		{"out of stock", []OrderItemInput{{MenuItemID: soldOut.ID, Quantity: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PriceOrder(vendor.ID, tt.items)
			assert.Error(t, err)
		})
	}

	cart, err := svc.PriceOrder(vendor.ID, []OrderItemInput{{MenuItemID: chapati.ID, Quantity: 3}})
	assert.NoError(t, err)
	assert.Equal(t, 15.00, cart.Total)
	assert.Equal(t, 5.00, cart.MenuByID[chapati.ID].Price)
}

func TestCreateOrderUsesPricedCartSnapshot(t *testing.T) {
	utils.InitLogger()
	db := openOrderDB(t, "order_snapshot")
	vendor, chapati, slot := seedOrderFixtures(t, db)

	svc := NewOrderService(db)
	cart, err := svc.PriceOrder(vendor.ID, []OrderItemInput{{MenuItemID: chapati.ID, Quantity: 2}})
	assert.NoError(t, err)
	assert.Equal(t, 10.00, cart.Total)

	// The vendor edits the price between the charge and the order write. The
	// stored order must match what the buyer was actually charged.
	assert.NoError(t, db.Model(&models.MenuItem{}).Where("id = ?", chapati.ID).Update("price", 9.00).Error)

	buyerID := uint(42)
	order, err := svc.CreateOrder(&buyerID, "", slot.ID, cart)
	assert.NoError(t, err)
	assert.Equal(t, 10.00, order.TotalAmount)

	var items []models.OrderItem
	assert.NoError(t, db.Where("order_id = ?", order.ID).Find(&items).Error)
	assert.Len(t, items, 1)
	assert.Equal(t, 5.00, items[0].Price)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestCreateOrderCompensatesFailedItems(t *testing.T) {
	utils.InitLogger()
	db := openOrderDB(t, "order_compensation")
	vendor, chapati, slot := seedOrderFixtures(t, db)

	svc := NewOrderService(db)
	cart, err := svc.PriceOrder(vendor.ID, []OrderItemInput{{MenuItemID: chapati.ID, Quantity: 1}})
	assert.NoError(t, err)

	// Make the item insert fail after the header has been committed.
	assert.NoError(t, db.Migrator().DropTable(&models.OrderItem{}))

	buyerID := uint(42)
	_, err = svc.CreateOrder(&buyerID, "", slot.ID, cart)
	assert.Error(t, err)

	// The orphaned header is marked invalid, never left pending.
	var orders []models.Order
	assert.NoError(t, db.Find(&orders).Error)
	assert.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusInvalid, orders[0].Status)
}

func TestCreateOrderRejectsClosedVendor(t *testing.T) {
	utils.InitLogger()
	db := openOrderDB(t, "order_closed_vendor")
	vendor, chapati, slot := seedOrderFixtures(t, db)

	svc := NewOrderService(db)
	cart, err := svc.PriceOrder(vendor.ID, []OrderItemInput{{MenuItemID: chapati.ID, Quantity: 1}})
	assert.NoError(t, err)

	assert.NoError(t, db.Model(&models.Vendor{}).Where("id = ?", vendor.ID).Update("open", false).Error)

	buyerID := uint(42)
	_, err = svc.CreateOrder(&buyerID, "", slot.ID, cart)
	assert.Error(t, err)

	var count int64
	assert.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}
