// Package telemetry provides observability for the forge CLI.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry),
// metrics (Prometheus) and an in-process event publisher, and plugs them
// into the operations package:
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	processor, _ := operations.NewProcessor(-1, operations.WithPoolObserver(tel.Metrics))
//	executor := operations.NewExecutor(operations.WithListener(tel.OperationListener()))
//
// Every operation run through executor becomes a span named after its
// display name. Nested operations become child spans. Queue items are counted
// per queue and status.
//
// # Metrics
//
//	forge_operations_started_total
//	forge_operations_finished_total{status}
//	forge_operation_duration_seconds{operation}
//	forge_errors_by_class_total{class,code}
//	forge_queue_items_submitted_total{queue}
//	forge_queue_items_finished_total{queue,status}
//	forge_queue_item_duration_seconds{queue}
//	forge_pool_threads
//	forge_projects_loaded
//
// # Events
//
// Events are delivered synchronously unless EventsConfig.EnableAsync is set,
// in which case Shutdown waits for the buffer to drain.
package telemetry
