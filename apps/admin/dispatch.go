package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) dispatch(ctx context.Context) error {
	report, err := cli.dispatcher.CheckAndSend(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("due: %d, sent: %d, skipped: %d, failed: %d, delivery failed: %d\n",
		report.Due, report.Sent, report.Skipped, report.Failed, report.DeliveryFailed)
	return nil
}
