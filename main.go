package main

import (
	"context"
	"time"

	"github.com/snapordereat/otpgate/internal/app"
)

// @title           OTP Gate API
// @version         1.0
// @description     OTP Gate issues, verifies and securely exposes one-time codes for SnapOrderEat services.
// @termsOfService  https://snapordereat.com/terms
// @contact.name    Contact Support
// @contact.url     https://snapordereat.com/contact
// @contact.email   support@snapordereat.com
// @license.name    MIT
// @license.url     https://mit-license.org/
// @server          http://localhost:8080
// @server          https://localhost:8080
func main() {
	application := app.New()    // Initialize the application
	wait := application.Start() // Start the application and wait for the termination signal
	<-wait                      // Wait for the application to receive a termination signal
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	application.Stop(ctx) // Stop the application gracefully
}
