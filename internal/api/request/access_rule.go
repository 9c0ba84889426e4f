package request

// CreateAccessRule holds the request body for creating an access rule. The
// address is re-validated and normalized server-side; the tag only catches
// obvious garbage before it reaches the service.
type CreateAccessRule struct {
	DBName string `json:"db_name" validate:"required"`
	CIDR   string `json:"cidr" validate:"required,cidrv4|ipv4"`
}
