package entity

// User carries the organisational context used to tailor classification and generation.
type User struct {
	Id               string `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
	Domain           string `json:"domain,omitempty"`
	Location         string `json:"location,omitempty"`
}
