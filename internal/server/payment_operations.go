package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/payflow/internal/ledger/domain"
)

func (s *Server) ReserveOrder(c *gin.Context) {
	orderID, err := parseID(c.Param("order_id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.paymentSvc.OrderCreated(c.Request.Context(), orderID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "reserved"}})
}

func (s *Server) RollbackReservation(c *gin.Context) {
	orderID, err := parseID(c.Param("order_id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.paymentSvc.OrderCreatedRollback(c.Request.Context(), orderID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "rolled_back"}})
}

type modifyOrderRequest struct {
	NewTotal int64 `json:"new_total"`
}

func (s *Server) ModifyOrder(c *gin.Context) {
	orderID, err := parseID(c.Param("order_id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req modifyOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.paymentSvc.OrderModified(c.Request.Context(), orderID, req.NewTotal); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "modified"}})
}

func (s *Server) CancelOrder(c *gin.Context) {
	orderID, err := parseID(c.Param("order_id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.paymentSvc.OrderCanceled(c.Request.Context(), orderID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "canceled"}})
}

type refundRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) RefundOrder(c *gin.Context) {
	orderID, err := parseID(c.Param("order_id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.paymentSvc.Refund(c.Request.Context(), orderID, req.Amount); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "refunded"}})
}

func (s *Server) ManualRefundOrder(c *gin.Context) {
	orderID, err := parseID(c.Param("order_id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.paymentSvc.ManualRefund(c.Request.Context(), orderID, req.Amount); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "refunded"}})
}

func (s *Server) CompleteShipment(c *gin.Context) {
	orderID, err := parseID(c.Param("order_id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	shipmentID, err := parseID(c.Param("shipment_id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.paymentSvc.ShipmentCompleted(c.Request.Context(), orderID, shipmentID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "charged"}})
}

func (s *Server) CancelShipment(c *gin.Context) {
	orderID, err := parseID(c.Param("order_id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	shipmentID, err := parseID(c.Param("shipment_id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.paymentSvc.ShipmentCanceled(c.Request.Context(), orderID, shipmentID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "canceled"}})
}

type rollbackShipmentRequest struct {
	RecordIDs []string `json:"record_ids"`
}

// RollbackShipmentCompletion reverses previously persisted charge events.
// Callers pass the ledger record IDs of the charges to undo; the events are
// re-read from the ledger so the rollback works from persisted truth.
func (s *Server) RollbackShipmentCompletion(c *gin.Context) {
	orderID, err := parseID(c.Param("order_id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req rollbackShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.RecordIDs) == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	wanted := make(map[snowflake.ID]struct{}, len(req.RecordIDs))
	for _, raw := range req.RecordIDs {
		id, err := parseID(raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		wanted[id] = struct{}{}
	}

	events, err := s.ledgerSvc.Read(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	prior := make([]ledgerdomain.PaymentEvent, 0, len(wanted))
	for _, event := range events {
		if _, ok := wanted[event.ID]; ok {
			prior = append(prior, event)
		}
	}
	if len(prior) != len(wanted) {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.paymentSvc.ShipmentCompletedRollback(c.Request.Context(), orderID, prior); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "rolled_back"}})
}

type ledgerEventResponse struct {
	ID                 string         `json:"id"`
	Kind               string         `json:"kind"`
	Status             string         `json:"status"`
	Amount             int64          `json:"amount"`
	Currency           string         `json:"currency"`
	OccurredAt         time.Time      `json:"occurred_at"`
	OrderNumber        string         `json:"order_number"`
	SelectionID        string         `json:"selection_id"`
	ParentID           *string        `json:"parent_id,omitempty"`
	OriginalInstrument bool           `json:"original_instrument"`
	EventData          map[string]any `json:"event_data,omitempty"`
	ExternalMessage    string         `json:"external_message,omitempty"`
}

func (s *Server) GetLedger(c *gin.Context) {
	orderID, err := parseID(c.Param("order_id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	events, err := s.ledgerSvc.Read(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]ledgerEventResponse, 0, len(events))
	for _, event := range events {
		item := ledgerEventResponse{
			ID:                 event.ID.String(),
			Kind:               string(event.Kind),
			Status:             string(event.Status),
			Amount:             event.Amount,
			Currency:           event.Currency,
			OccurredAt:         event.OccurredAt,
			OrderNumber:        event.OrderNumber,
			SelectionID:        event.SelectionID.String(),
			OriginalInstrument: event.OriginalInstrument,
			EventData:          event.EventData,
			ExternalMessage:    event.ExternalMessage,
		}
		if event.ParentID != nil {
			parent := event.ParentID.String()
			item.ParentID = &parent
		}
		resp = append(resp, item)
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetLedgerState(c *gin.Context) {
	orderID, err := parseID(c.Param("order_id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	events, err := s.ledgerSvc.Read(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"state": ledgerdomain.DeriveState(events)}})
}

func parseID(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(raw))
}
