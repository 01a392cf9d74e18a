package http

import (
	"fmt"

	"khata/internal/engine"
)

const (
	registrationHelpReply = "Please register with your name.\nFormat: register YourName"

	unregisteredReply = "👋 Welcome to Expense Tracker!\n\nPlease register first by sending:\nregister YourName\n\nExample: register Rahul"

	storageErrorReply = "⚠️ Could not save your expense right now. Please try again in a moment."
)

// RenderReply turns a processing result into the WhatsApp reply text.
// expenseID is only consulted for expense results; pass 0 otherwise.
func RenderReply(res engine.Result, expenseID int64) string {
	switch res.Outcome {
	case engine.OutcomeRegistration:
		if !res.Registration.Success {
			return registrationHelpReply
		}
		return fmt.Sprintf("✓ Welcome %s! You're now registered.\n\n"+
			"You can start logging expenses by sending messages like:\n"+
			"• Paid 5000 rent\n"+
			"• Travel 300 auto\n"+
			"• Bought stock 15000\n"+
			"• Lent 20000 to company\n"+
			"• Client gift 1000", res.Registration.Name)
	case engine.OutcomeUnregistered:
		return unregisteredReply
	case engine.OutcomeParseError:
		return fmt.Sprintf("❌ %s\n\nPlease include an amount in your message.\nExample: Paid 5000 for rent", res.Reason)
	case engine.OutcomeExpense:
		return fmt.Sprintf("✓ Recorded #%d\n₹%s - %s\nBy: %s",
			expenseID,
			res.Expense.Amount.Format(),
			res.Expense.Category.Label(),
			res.Expense.PartnerName)
	default:
		return unregisteredReply
	}
}
