package middleware

import "github.com/gin-gonic/gin"

// Keys under which handlers tag a request with the document it touched.
// respond.Error reads documentId and errorCode by name.
const (
	documentIDKey       = "documentId"
	documentStatusKey   = "documentStatus"
	statusTransitionKey = "statusTransition"
	errorCodeKey        = "errorCode"
)

// SetDocument records the document a request acted on.
func SetDocument(c *gin.Context, id string) {
	c.Set(documentIDKey, id)
}

// SetDocumentStatus records the document's status as of the response.
func SetDocumentStatus(c *gin.Context, status string) {
	c.Set(documentStatusKey, status)
}

// SetStatusTransition records a lifecycle move made while serving the request.
func SetStatusTransition(c *gin.Context, from, to string) {
	c.Set(statusTransitionKey, from+"->"+to)
	c.Set(documentStatusKey, to)
}

// DocumentID returns the id stored by SetDocument, or "".
func DocumentID(c *gin.Context) string {
	return c.GetString(documentIDKey)
}
