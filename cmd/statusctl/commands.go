package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"statuscore/internal/archive"
	"statuscore/internal/status"
	"statuscore/pkg/domain"
)

func newCreateCommand(a *app) *cobra.Command {
	var (
		in        domain.Status
		createdBy string
		tags      []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new status record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(tags) > 0 {
				parsed, err := parseTags(tags)
				if err != nil {
					return err
				}
				in.Tags = parsed
			}
			created, err := a.engine.Create(cmd.Context(), in, createdBy)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), created)
		},
	}
	cmd.Flags().StringVar(&in.ClientID, "client", "", "owning client ID (required)")
	cmd.Flags().StringVar(&in.CurrentStage, "stage", "new", "initial workflow stage")
	cmd.Flags().StringVar(&in.StatusType, "type", "", "status type")
	cmd.Flags().StringVar(&in.Category, "category", "", "category")
	cmd.Flags().StringVar(&in.SubCategory, "sub-category", "", "sub-category")
	cmd.Flags().StringVar(&in.Priority, "priority", "", "priority")
	cmd.Flags().StringVar(&in.StatusSummary, "summary", "", "human-readable summary")
	cmd.Flags().StringVar(&in.AdvisorID, "advisor", "", "advisor ID")
	cmd.Flags().StringVar(&in.HouseholdID, "household", "", "household ID")
	cmd.Flags().StringVar(&in.TrackingID, "tracking-id", "", "explicit tracking ID (generated when omitted)")
	cmd.Flags().StringVar(&in.SourceID, "source-id", "", "external source system ID")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag as key=value (repeatable)")
	cmd.Flags().StringVar(&createdBy, "created-by", "", "acting user")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func newGetCommand(a *app) *cobra.Command {
	var trackingID, sourceID string
	cmd := &cobra.Command{
		Use:   "get [status-id]",
		Short: "Fetch a status by ID, tracking ID, or source ID",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				st  domain.Status
				err error
			)
			switch {
			case len(args) == 1:
				st, err = a.engine.GetByID(cmd.Context(), args[0])
			case trackingID != "":
				st, err = a.engine.GetByTrackingID(cmd.Context(), trackingID)
			case sourceID != "":
				st, err = a.engine.GetBySourceID(cmd.Context(), sourceID)
			default:
				return fmt.Errorf("supply a status ID argument, --tracking-id, or --source-id")
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
	cmd.Flags().StringVar(&trackingID, "tracking-id", "", "look up by tracking ID")
	cmd.Flags().StringVar(&sourceID, "source-id", "", "look up by source ID")
	return cmd
}

func newUpdateCommand(a *app) *cobra.Command {
	var (
		req  = statusUpdateFlags{}
		tags []string
	)
	cmd := &cobra.Command{
		Use:   "update <status-id>",
		Short: "Apply a sparse patch to a status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := req.patch(cmd, tags)
			if err != nil {
				return err
			}
			updated, err := a.engine.Update(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), updated)
		},
	}
	cmd.Flags().StringVar(&req.stage, "stage", "", "new workflow stage")
	cmd.Flags().StringVar(&req.summary, "summary", "", "new summary")
	cmd.Flags().StringVar(&req.priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&req.category, "category", "", "new category")
	cmd.Flags().StringVar(&req.advisor, "advisor", "", "new advisor ID")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "replace tags with key=value pairs (repeatable)")
	cmd.Flags().Int64Var(&req.expectedVersion, "expected-version", 0, "optimistic concurrency precondition (0 = none)")
	cmd.Flags().StringVar(&req.updatedBy, "updated-by", "", "acting user")
	cmd.Flags().StringVar(&req.reason, "reason", "", "change reason recorded in history")
	cmd.Flags().StringVar(&req.description, "description", "", "change description recorded in history")
	return cmd
}

// statusUpdateFlags builds an UpdateRequest from only the flags the caller
// actually set, preserving sparse-patch semantics.
type statusUpdateFlags struct {
	stage, summary, priority, category, advisor string
	expectedVersion                             int64
	updatedBy, reason, description              string
}

func (f *statusUpdateFlags) patch(cmd *cobra.Command, tags []string) (status.UpdateRequest, error) {
	patch := domain.StatusPatch{}
	if cmd.Flags().Changed("stage") {
		patch.CurrentStage = &f.stage
	}
	if cmd.Flags().Changed("summary") {
		patch.StatusSummary = &f.summary
	}
	if cmd.Flags().Changed("priority") {
		patch.Priority = &f.priority
	}
	if cmd.Flags().Changed("category") {
		patch.Category = &f.category
	}
	if cmd.Flags().Changed("advisor") {
		patch.AdvisorID = &f.advisor
	}
	if cmd.Flags().Changed("tag") {
		parsed, err := parseTags(tags)
		if err != nil {
			return status.UpdateRequest{}, err
		}
		patch.Tags = parsed
	}
	return status.UpdateRequest{
		Patch:             patch,
		UpdatedBy:         f.updatedBy,
		ExpectedVersion:   f.expectedVersion,
		ChangeReason:      f.reason,
		ChangeDescription: f.description,
	}, nil
}

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <client-id>",
		Short: "List a client's statuses in creation order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := a.engine.ListByClient(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), statuses)
		},
	}
}

func newSearchCommand(a *app) *cobra.Command {
	var criteria domain.SearchCriteria
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search statuses by filters and free text",
		RunE: func(cmd *cobra.Command, _ []string) error {
			results, err := a.search.Search(cmd.Context(), criteria)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().StringVar(&criteria.ClientID, "client", "", "filter by client ID")
	cmd.Flags().StringVar(&criteria.AdvisorID, "advisor", "", "filter by advisor ID")
	cmd.Flags().StringVar(&criteria.StatusType, "type", "", "filter by status type")
	cmd.Flags().StringVar(&criteria.Priority, "priority", "", "filter by priority")
	cmd.Flags().StringVar(&criteria.Category, "category", "", "filter by category")
	cmd.Flags().StringVar(&criteria.TextSearch, "text", "", "case-insensitive substring search")
	return cmd
}

func newHistoryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history <status-id>",
		Short: "Show the audit history of a status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.engine.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
}

func newExportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Archive a snapshot of all records to the blob store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			blobs, err := a.openBlobStore(cmd)
			if err != nil {
				return fmt.Errorf("open blob store: %w", err)
			}
			exporter := archive.NewExporter(a.engine, blobs)
			info, err := exporter.Export(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}
}

func parseTags(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid tag %q, want key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}
