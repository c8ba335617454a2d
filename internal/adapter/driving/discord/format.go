package discord

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/microcosm-cc/bluemonday"

	"github.com/ericfisherdev/johnnycage/internal/domain/model"
)

// Discord embed limits.
const (
	maxEmbedTitle    = 256
	maxFieldName     = 256
	maxOverviewRunes = 200
	embedColor       = 0x3498db
)

// textPolicy strips any markup Overseerr passes through from TMDb.
var textPolicy = bluemonday.StrictPolicy()

// plainText removes HTML tags and entities and collapses whitespace.
func plainText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(textPolicy.Sanitize(s))), " ")
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

func searchEmbed(query string, results []model.SearchResult) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: truncate("Search results for: "+plainText(query), maxEmbedTitle),
		Color: embedColor,
	}

	for _, r := range results {
		value := fmt.Sprintf("Type: `%s` · TMDb ID: `%d`", r.MediaType, r.TMDbID)
		if overview := plainText(r.Overview); overview != "" {
			value += "\n" + truncate(overview, maxOverviewRunes)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  truncate(fmt.Sprintf("%s (%s)", plainText(r.Title), r.ReleaseYear), maxFieldName),
			Value: value,
		})
	}
	return embed
}

const (
	msgSearchError     = "❌ Error searching Overseerr."
	msgNoResults       = "🔍 No results found."
	msgSearchQuip      = "Am I in any of these? I sure hope so."
	msgNotFound        = "❌ I couldn't find that ID as a movie or TV show in Overseerr. Double-check the TMDb ID."
	msgCatalogDown     = "❌ Overseerr isn't answering right now. Try again in a bit."
	msgAlreadyAsked    = "🕶️ Already requested. Even Johnny doesn't do reruns."
	msgLinkDMSent      = "📬 I DM'd you a Plex link code."
	msgLinkStartFailed = "❌ Could not start Plex linking. Try again."
	msgUnlinked        = "🔓 Your Plex link has been removed."
	msgLinkPending     = "⏳ A link is in progress. Check your DMs for the code."
	msgBroke           = "❌ Something broke, but don't blame me. I only break necks."
)

func msgSearchUsage(prefix string) string {
	return fmt.Sprintf("🔍 Usage: `%ssearch <title>`", prefix)
}

func msgRequestUsage(prefix string) string {
	return fmt.Sprintf("❓ Usage: `%srequest <tmdb id>`. Find the id with `%ssearch`.", prefix, prefix)
}

func msgNotLinked(prefix string) string {
	return fmt.Sprintf("🔒 You must `%slink` (link your Plex) before requesting.", prefix)
}

func msgRequested(res model.RequestResult) string {
	return fmt.Sprintf("🥊 Requested **%s** with TMDb `%d`. Johnny approves.", res.MediaType, res.TMDbID)
}

func msgRequestFailed(status int, detail string) string {
	return strings.TrimSpace(fmt.Sprintf("💥 Request failed (status %d). %s", status, plainText(detail)))
}

func msgDMRefused(prefix string) string {
	return fmt.Sprintf("❌ I couldn't DM you. Open your DMs and run `%slink` again.", prefix)
}

func msgPollFailed(prefix string) string {
	return fmt.Sprintf("❌ Plex stopped answering while I waited for your code. Run `%slink` again.", prefix)
}

func msgNoLink(prefix string) string {
	return fmt.Sprintf("🔓 No Plex account linked. Use `%slink` to connect one.", prefix)
}

func msgLinkedSince(at *time.Time) string {
	if at == nil {
		return "🔗 Your Plex account is linked."
	}
	return fmt.Sprintf("🔗 Your Plex account has been linked since <t:%d:R>.", at.Unix())
}

func msgUnknownCommand(prefix string) string {
	return fmt.Sprintf("❓ That's not a real command. Try `%shelp`, or ask me for an autograph.", prefix)
}

func msgHelp(prefix string) string {
	lines := []string{
		"**Johnny Cage, at your service.**",
		fmt.Sprintf("`%ssearch <title>`: search Overseerr for a movie or show", prefix),
		fmt.Sprintf("`%srequest <tmdb id>`: request a title (needs a linked Plex account)", prefix),
		fmt.Sprintf("`%slink`: link your Plex account", prefix),
		fmt.Sprintf("`%sunlink`: remove your Plex link", prefix),
		fmt.Sprintf("`%sstatus`: show your link status", prefix),
	}
	return strings.Join(lines, "\n")
}
