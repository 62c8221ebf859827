package enums

import "fmt"

// CartIssueReason explains why a cart line blocks checkout.
type CartIssueReason string

const (
	CartIssueProductInactive   CartIssueReason = "product_inactive"
	CartIssueVariantInactive   CartIssueReason = "variant_inactive"
	CartIssueInsufficientStock CartIssueReason = "insufficient_stock"
)

var validCartIssueReasons = []CartIssueReason{
	CartIssueProductInactive,
	CartIssueVariantInactive,
	CartIssueInsufficientStock,
}

// String implements fmt.Stringer.
func (c CartIssueReason) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c CartIssueReason) IsValid() bool {
	for _, candidate := range validCartIssueReasons {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCartIssueReason converts raw input into a CartIssueReason.
func ParseCartIssueReason(value string) (CartIssueReason, error) {
	for _, candidate := range validCartIssueReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart issue reason %q", value)
}
