package entity

import "giftsync/lib/validate"

type Role string

const (
	RoleBuyer     Role = "buyer"
	RoleRecipient Role = "recipient"
)

// Contact is one audience member to upsert and tag.
type Contact struct {
	Role        Role              `json:"role" validate:"required,oneof=buyer recipient"`
	Email       string            `json:"email" validate:"required,email"`
	MergeFields map[string]string `json:"merge_fields"`
	Tags        []string          `json:"tags" validate:"dive,required"`
}

func (c *Contact) Validate() error {
	return validate.Struct(c)
}
