package fulfillment

import (
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/clock"
	"github.com/example/bazaar/internal/config"
	"github.com/example/bazaar/internal/queue"
)

// Pipeline bundles the orchestrator and the three downstream consumers
// and wires them onto a worker.
type Pipeline struct {
	Orchestrator *Orchestrator
	Inventory    *InventoryUpdater
	Commissions  *CommissionCalculator
	Notifier     *Notifier
}

// NewPipeline constructs the full fulfillment pipeline.
func NewPipeline(db *gorm.DB, broker queue.Broker, clk clock.Clock, mailer Mailer, cfg config.Fulfillment) *Pipeline {
	return &Pipeline{
		Orchestrator: NewOrchestrator(db, broker, clk, cfg),
		Inventory:    NewInventoryUpdater(db, broker, clk, cfg),
		Commissions:  NewCommissionCalculator(db, clk, cfg),
		Notifier:     NewNotifier(db, mailer),
	}
}

// Register attaches every pipeline handler and failure hook to the worker.
func (p *Pipeline) Register(w *queue.Worker) {
	w.Handle(TypeProcessPayment, p.Orchestrator.HandleProcessPayment)
	w.OnFailure(TypeProcessPayment, p.Orchestrator.HandlePaymentFailure)

	w.Handle(TypeUpdateInventory, p.Inventory.HandleUpdateInventory)
	w.Handle(TypeCalculateCommissions, p.Commissions.HandleCalculateCommissions)
	w.Handle(TypeGenerateNotifications, p.Notifier.HandleGenerateNotifications)
	w.Handle(TypeSendConfirmationEmail, p.Notifier.HandleSendConfirmationEmail)
	w.Handle(TypeSendLowStockAlert, p.Notifier.HandleLowStockAlert)
}
