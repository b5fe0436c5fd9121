package models

type Customer struct {
	CustomerId int    `json:"customer_id"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	DateJoined Date   `json:"date_joined"`
}

var CustomerHeadings = []string{"customer_id", "name", "address", "email", "phone", "date_joined"}

func (c Customer) GetCellValues() []interface{} {
	return []interface{}{c.CustomerId, c.Name, c.Address, c.Email, c.Phone, c.DateJoined.String()}
}
