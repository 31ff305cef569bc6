package domain

// Account is a customer account provisioned from the reference directory.
// Meter readings may only be recorded against existing accounts.
type Account struct {
	ID        int64   `json:"account_id" gorm:"column:id;primaryKey;autoIncrement:false"`
	FirstName *string `json:"first_name,omitempty" gorm:"type:text"`
	LastName  *string `json:"last_name,omitempty" gorm:"type:text"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }
