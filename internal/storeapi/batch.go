package storeapi

import (
	"encoding/json"
	"strconv"
)

// The batch endpoint (POST /batch) runs multiple cart operations in one
// HTTP round-trip, cutting a reorder of N items from N calls to one.
// Operations execute sequentially in order and succeed or fail
// independently; each result carries its own status.

// BatchBuilder constructs batch requests for the Store API.
// Methods chain for readability.
type BatchBuilder struct {
	operations []BatchOperation
}

// NewBatch creates an empty batch builder.
func NewBatch() *BatchBuilder {
	return &BatchBuilder{operations: make([]BatchOperation, 0)}
}

// AddItem appends an add-to-cart operation.
func (b *BatchBuilder) AddItem(productID, quantity int) *BatchBuilder {
	body, _ := json.Marshal(AddItemRequest{ID: strconv.Itoa(productID), Quantity: quantity})
	b.operations = append(b.operations, BatchOperation{
		Path:   storeAPIPath + "/cart/add-item",
		Method: "POST",
		Body:   body,
	})
	return b
}

// SelectShippingRate appends a rate selection operation.
func (b *BatchBuilder) SelectShippingRate(packageID int, rateID string) *BatchBuilder {
	if rateID == "" {
		return b
	}
	body, _ := json.Marshal(SelectShippingRateRequest{PackageID: packageID, RateID: rateID})
	b.operations = append(b.operations, BatchOperation{
		Path:   storeAPIPath + "/cart/select-shipping-rate",
		Method: "POST",
		Body:   body,
	})
	return b
}

// HasOperations returns true if any operations have been added.
func (b *BatchBuilder) HasOperations() bool {
	return len(b.operations) > 0
}

// OperationCount returns the number of operations in the batch.
func (b *BatchBuilder) OperationCount() int {
	return len(b.operations)
}

// Build returns the batch request ready for execution, or nil if no
// operations were added.
func (b *BatchBuilder) Build() *BatchRequest {
	if len(b.operations) == 0 {
		return nil
	}
	return &BatchRequest{Requests: b.operations}
}

// InjectHeaders adds the given headers to every operation in the batch.
// The batch endpoint requires per-operation session headers; it does not
// propagate the parent request's.
func (r *BatchRequest) InjectHeaders(headers map[string]string) {
	for i := range r.Requests {
		if r.Requests[i].Headers == nil {
			r.Requests[i].Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			r.Requests[i].Headers[k] = v
		}
	}
}

// Err converts a failed sub-result into an APIError using the same
// taxonomy as top-level responses. Returns nil for success statuses.
func (r BatchResult) Err() error {
	if r.Status < 400 {
		return nil
	}
	return parseErrorResponse(r.Status, r.Body, nil)
}

// FirstFailure returns the first sub-result with status >= 400, if any.
func (r *BatchResponse) FirstFailure() (BatchResult, bool) {
	for _, result := range r.Responses {
		if result.Status >= 400 {
			return result, true
		}
	}
	return BatchResult{}, false
}
