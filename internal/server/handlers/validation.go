package handlers

import (
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// dateFormat validates the YYYY-MM-DD date strings carried by statistics
// and invoices. Anything else silently creates an orphan tuple the sales
// aggregator can never match.
func dateFormat(fl validator.FieldLevel) bool {
	_, err := time.Parse("2006-01-02", fl.Field().String())
	return err == nil
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("datefmt", dateFormat)
	}
}
