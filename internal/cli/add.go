package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/amyq/internal/cli/appctx"
	"github.com/lherron/amyq/internal/domain"
	"github.com/lherron/amyq/internal/id"
	"github.com/lherron/amyq/internal/selectors"
	"github.com/lherron/amyq/internal/store"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Create persons, events and training requests",
}

var addPersonCmd = &cobra.Command{
	Use:   "person <username>",
	Short: "Create a person",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.WithActor(), runAddPerson),
}

var addEventCmd = &cobra.Command{
	Use:   "event <slug>",
	Short: "Create a workshop event",
	Long:  `Creates an event. Slugs look like 2024-01-10-oslo; the host is an organization domain.`,
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.WithActor(), runAddEvent),
}

var addRequestCmd = &cobra.Command{
	Use:   "request <email>",
	Short: "Create a training request",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.WithActor(), runAddRequest),
}

var (
	addPersonal    string
	addFamily      string
	addEmail       string
	addGitHub      string
	addAirport     string
	addAffiliation string
	addNotes       string

	addEventHost  string
	addEventStart string
	addEventEnd   string
	addEventVenue string

	addRequestReason string
	addRequestPerson string
)

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.AddCommand(addPersonCmd, addEventCmd, addRequestCmd)

	for _, c := range []*cobra.Command{addPersonCmd, addRequestCmd} {
		c.Flags().StringVar(&addPersonal, "personal", "", "Personal (given) name")
		c.Flags().StringVar(&addFamily, "family", "", "Family name")
		c.Flags().StringVar(&addGitHub, "github", "", "GitHub handle")
		c.Flags().StringVar(&addAffiliation, "affiliation", "", "Affiliation")
		c.Flags().StringVar(&addNotes, "notes", "", "Free-text notes")
	}
	addPersonCmd.Flags().StringVar(&addEmail, "email", "", "Email address")
	addPersonCmd.Flags().StringVar(&addAirport, "airport", "", "Nearest airport IATA code")

	addEventCmd.Flags().StringVar(&addEventHost, "host", "", "Host organization domain (required)")
	addEventCmd.Flags().StringVar(&addEventStart, "start", "", "Start date (YYYY-MM-DD)")
	addEventCmd.Flags().StringVar(&addEventEnd, "end", "", "End date (YYYY-MM-DD)")
	addEventCmd.Flags().StringVar(&addEventVenue, "venue", "", "Venue")
	addEventCmd.Flags().StringVar(&addNotes, "notes", "", "Free-text notes")
	_ = addEventCmd.MarkFlagRequired("host")

	addRequestCmd.Flags().StringVar(&addRequestReason, "reason", "", "Why the applicant wants training")
	addRequestCmd.Flags().StringVar(&addRequestPerson, "person", "", "Matched person selector")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func printCreated(app *appctx.App, cmd *cobra.Command, kind string, res *store.CreateResult) error {
	r, err := newRenderer(app, cmd)
	if err != nil {
		return err
	}
	if r.Structured() {
		return r.Render(map[string]any{"kind": kind, "uuid": res.UUID, "id": res.ID, "etag": res.ETag}, nil, nil)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (%s)\n", kind, res.ID, res.UUID)
	return nil
}

func runAddPerson(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := appctx.Context(cmd)
	params := store.PersonCreateParams{
		Username:    args[0],
		Personal:    addPersonal,
		Family:      addFamily,
		Email:       optional(addEmail),
		GitHub:      optional(addGitHub),
		Affiliation: addAffiliation,
		Notes:       addNotes,
	}
	if addAirport != "" {
		airportUUID, err := app.Store.Lookups.EnsureAirport(ctx, addAirport, addAirport)
		if err != nil {
			return err
		}
		params.AirportUUID = &airportUUID
	}

	res, err := app.Store.Persons.Create(ctx, app.ActorUUID, params)
	if err != nil {
		return err
	}
	return printCreated(app, cmd, "person", res)
}

func runAddEvent(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := appctx.Context(cmd)
	hostUUID, err := app.Store.Lookups.EnsureOrganization(ctx, addEventHost, addEventHost)
	if err != nil {
		return err
	}

	res, err := app.Store.Events.Create(ctx, app.ActorUUID, store.EventCreateParams{
		Slug:     args[0],
		HostUUID: hostUUID,
		Start:    optional(addEventStart),
		End:      optional(addEventEnd),
		Venue:    addEventVenue,
		Notes:    addNotes,
	})
	if err != nil {
		return err
	}
	return printCreated(app, cmd, "event", res)
}

func runAddRequest(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := appctx.Context(cmd)
	params := store.RequestCreateParams{
		Email:       args[0],
		Personal:    addPersonal,
		Family:      addFamily,
		GitHub:      optional(addGitHub),
		Affiliation: addAffiliation,
		Reason:      addRequestReason,
		Notes:       addNotes,
	}
	if addRequestPerson != "" {
		personUUID, _, err := selectors.Resolve(ctx, app.DB, id.TypePerson, addRequestPerson)
		if err != nil {
			return fmt.Errorf("person: %w", err)
		}
		params.PersonUUID = &personUUID
	}

	res, err := app.Store.Requests.Create(ctx, app.ActorUUID, params)
	if err != nil {
		return err
	}
	return printCreated(app, cmd, "training_request", res)
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage a person's roles at events",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <event> <person> <role>",
	Short: "Record that a person held a role at an event",
	Args:  cobra.ExactArgs(3),
	RunE:  appctx.WithApp(appctx.WithActor(), runTaskAdd),
}

var awardCmd = &cobra.Command{
	Use:   "award",
	Short: "Manage badges awarded to persons",
}

var awardAddCmd = &cobra.Command{
	Use:   "add <person> <badge>",
	Short: "Award a badge to a person",
	Args:  cobra.ExactArgs(2),
	RunE:  appctx.WithApp(appctx.WithActor(), runAwardAdd),
}

var (
	taskAddURL   string
	taskAddTitle string

	awardAddDate  string
	awardAddEvent string
	awardAddBy    string
)

func init() {
	rootCmd.AddCommand(taskCmd, awardCmd)
	taskCmd.AddCommand(taskAddCmd)
	awardCmd.AddCommand(awardAddCmd)

	taskAddCmd.Flags().StringVar(&taskAddURL, "url", "", "Link for the task")
	taskAddCmd.Flags().StringVar(&taskAddTitle, "title", "", "Task title")

	awardAddCmd.Flags().StringVar(&awardAddDate, "awarded", "", "Award date (YYYY-MM-DD, required)")
	awardAddCmd.Flags().StringVar(&awardAddEvent, "event", "", "Event the badge was earned at")
	awardAddCmd.Flags().StringVar(&awardAddBy, "by", "", "Person who awarded the badge")
	_ = awardAddCmd.MarkFlagRequired("awarded")
}

func runTaskAdd(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := appctx.Context(cmd)
	eventUUID, _, err := selectors.Resolve(ctx, app.DB, id.TypeEvent, args[0])
	if err != nil {
		return fmt.Errorf("event: %w", err)
	}
	personUUID, _, err := selectors.Resolve(ctx, app.DB, id.TypePerson, args[1])
	if err != nil {
		return fmt.Errorf("person: %w", err)
	}
	roleUUID, err := app.Store.Lookups.Ensure(ctx, "roles", args[2])
	if err != nil {
		return err
	}

	res, err := app.Store.Children.CreateTask(ctx, app.ActorUUID, domain.Task{
		EventUUID:  eventUUID,
		PersonUUID: personUUID,
		RoleUUID:   roleUUID,
		Title:      taskAddTitle,
		URL:        taskAddURL,
	})
	if err != nil {
		return err
	}
	return printCreated(app, cmd, "task", res)
}

func runAwardAdd(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := appctx.Context(cmd)
	if err := domain.ValidateDate(awardAddDate); err != nil {
		return &domain.ValidationError{Field: "awarded", Message: err.Error()}
	}
	personUUID, _, err := selectors.Resolve(ctx, app.DB, id.TypePerson, args[0])
	if err != nil {
		return fmt.Errorf("person: %w", err)
	}
	badgeUUID, err := app.Store.Lookups.Ensure(ctx, "badges", args[1])
	if err != nil {
		return err
	}

	award := domain.Award{PersonUUID: personUUID, BadgeUUID: badgeUUID, Awarded: awardAddDate}
	if awardAddEvent != "" {
		eventUUID, _, err := selectors.Resolve(ctx, app.DB, id.TypeEvent, awardAddEvent)
		if err != nil {
			return fmt.Errorf("event: %w", err)
		}
		award.EventUUID = &eventUUID
	}
	if awardAddBy != "" {
		byUUID, _, err := selectors.Resolve(ctx, app.DB, id.TypePerson, awardAddBy)
		if err != nil {
			return fmt.Errorf("awarded by: %w", err)
		}
		award.AwardedByUUID = &byUUID
	}

	res, err := app.Store.Children.CreateAward(ctx, app.ActorUUID, award)
	if err != nil {
		return err
	}
	return printCreated(app, cmd, "award", res)
}

var linkCmd = &cobra.Command{
	Use:   "link <kind> <record> <relation> <name>...",
	Short: "Attach lookup values (domains, languages, tags) to a record",
	Long: `Link attaches named lookup rows to a record, creating them as needed.

Relations: person domains|languages, event tags,
training_request domains|previous_involvement.`,
	Args: cobra.MinimumNArgs(4),
	RunE: appctx.WithApp(appctx.WithActor(), runLink),
}

func init() {
	rootCmd.AddCommand(linkCmd)
}

func runLink(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := appctx.Context(cmd)
	kind := id.Type(args[0])
	ownerUUID, ownerID, err := selectors.Resolve(ctx, app.DB, kind, args[1])
	if err != nil {
		return err
	}
	added, err := app.Store.Lookups.Link(ctx, app.ActorUUID, args[0]+"."+args[2], ownerUUID, args[3:]...)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Linked %d %s to %s\n", added, args[2], ownerID)
	return nil
}
