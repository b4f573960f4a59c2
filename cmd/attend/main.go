// Command attend is the face check-in kiosk agent.
//
// Usage:
//
//	attend serve                 # kiosk server on :8090
//	attend login -u alice        # store a bearer token
//	attend checkin               # headless single check-in
//	attend history --month 10    # list attendance records
//	attend watch                 # follow a running kiosk's status
package main

func main() {
	Execute()
}
