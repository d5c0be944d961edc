package shared

// Module keys a tenant must be entitled to before queue or order endpoints run.
const (
	ModulePurchase = "purchase"
	ModuleSales    = "sales"
)

// Modules lists every entitlement key known to the back-office.
func Modules() []string {
	return []string{ModulePurchase, ModuleSales}
}
