package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/canopy-network/canopy-frontend-sub008/internal/common"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/schema"
)

func (s *APIServer) RegisterRoutes() http.Handler {
	router := gin.New()

	// Register routes
	router.GET("/", s.DefaultHandler) // liveness handler

	router.POST("/orders/v1.0/lock", s.LockOrder)
	router.POST("/orders/v1.0/close", s.CloseOrder)
	router.POST("/orders/v1.0/retry/:orderId", s.RetryOrder)
	router.GET("/orders/v1.0/tracked", s.TrackedOrders)
	router.DELETE("/orders/v1.0/tracked/:orderId", s.RemoveTrackedOrder)

	// Wrap the router with CORS middleware
	return s.corsMiddleware(router)
}

func (s *APIServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*") // Replace "*" with specific origins if needed
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Proceed with the next handler
		next.ServeHTTP(w, r)
	})
}

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

type trackedQuery struct {
	Status string `schema:"status"`
}

type lockRequest struct {
	Order         common.Order `json:"order"`
	NativeAddress string       `json:"nativeAddress"`
}

type closeRequest struct {
	Order common.Order `json:"order"`
}

type retryRequest struct {
	NativeAddress string `json:"nativeAddress"`
}

func (s *APIServer) LockOrder(c *gin.Context) {
	body := c.Request.Body
	defer body.Close()

	req := lockRequest{}
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lock request"})
		s.logger.Printf("Failed to decode lock request: %v", err)
		return
	}

	if err := s.coordinator.SendLockOrder(c.Request.Context(), req.Order, req.NativeAddress); err != nil {
		s.writeCoordinatorError(c, err)
		return
	}

	entry, _ := s.coordinator.Tracker().Get(req.Order.ID)
	c.JSON(http.StatusAccepted, entry)
}

func (s *APIServer) CloseOrder(c *gin.Context) {
	body := c.Request.Body
	defer body.Close()

	req := closeRequest{}
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid close request"})
		s.logger.Printf("Failed to decode close request: %v", err)
		return
	}

	if err := s.coordinator.SendCloseOrder(c.Request.Context(), req.Order); err != nil {
		s.writeCoordinatorError(c, err)
		return
	}

	entry, _ := s.coordinator.Tracker().Get(req.Order.ID)
	c.JSON(http.StatusAccepted, entry)
}

func (s *APIServer) RetryOrder(c *gin.Context) {
	orderID := c.Param("orderId")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order id is required"})
		return
	}

	req := retryRequest{}
	if c.Request.Body != nil {
		defer c.Request.Body.Close()
		// An empty body is fine: nativeAddress is only needed for lock retries.
		_ = json.NewDecoder(c.Request.Body).Decode(&req)
	}

	if err := s.coordinator.Retry(c.Request.Context(), orderID, req.NativeAddress); err != nil {
		s.writeCoordinatorError(c, err)
		return
	}

	entry, _ := s.coordinator.Tracker().Get(orderID)
	c.JSON(http.StatusAccepted, entry)
}

func (s *APIServer) TrackedOrders(c *gin.Context) {
	query := trackedQuery{}
	if err := queryDecoder.Decode(&query, c.Request.URL.Query()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	tr := s.coordinator.Tracker()
	if query.Status == "" {
		c.JSON(http.StatusOK, tr.All())
		return
	}

	c.JSON(http.StatusOK, tr.ByStatus(common.OrderStatus(query.Status)))
}

func (s *APIServer) RemoveTrackedOrder(c *gin.Context) {
	orderID := c.Param("orderId")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order id is required"})
		return
	}

	s.coordinator.Tracker().Remove(orderID)
	c.Status(http.StatusNoContent)
}

func (s *APIServer) DefaultHandler(c *gin.Context) {
	c.String(http.StatusOK, "order coordinator up, tracking %d orders", s.coordinator.Tracker().Len())
}

// writeCoordinatorError maps the error taxonomy onto HTTP statuses, keeping
// the underlying message intact for user diagnosis.
func (s *APIServer) writeCoordinatorError(c *gin.Context, err error) {
	var precondition *common.PreconditionError
	var submission *common.SubmissionError

	switch {
	case errors.As(err, &precondition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": precondition.Reason})
	case errors.As(err, &submission):
		c.JSON(http.StatusBadGateway, gin.H{"error": submission.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}

	s.logger.Printf("request failed: %v", err)
}
