package bot

import telebot "gopkg.in/telebot.v3"

// Command names, without the leading slash.
const (
	CommandStart       = "start"
	CommandRegister    = "register"
	CommandCheck       = "check"
	CommandBin         = "bin"
	CommandCredits     = "credits"
	CommandMe          = "me"
	CommandReferral    = "referral"
	CommandMyReferrals = "myreferrals"
	CommandBuy         = "buy"
	CommandLog         = "log"
	CommandDisclaimer  = "disclaimer"

	CommandUsers      = "users"
	CommandBroadcast  = "broadcast"
	CommandConfirm    = "confirm"
	CommandReject     = "reject"
	CommandBan        = "ban"
	CommandUnban      = "unban"
	CommandAddCredits = "addcredits"
)

// unavailableCommands are listed in tier tables but have no implementation.
var unavailableCommands = []string{
	"masschk",
	"deepchk",
	"binstats",
	"vault",
	"autocharge",
	"binweekly",
	"generate",
	"generateinfo",
}

// menuCommands is published to Telegram as the bot's command list.
var menuCommands = []telebot.Command{
	{Text: CommandStart, Description: "Show your account"},
	{Text: CommandRegister, Description: "Create your account"},
	{Text: CommandCheck, Description: "Check a card number"},
	{Text: CommandBin, Description: "Look up a BIN"},
	{Text: CommandCredits, Description: "Show your balance"},
	{Text: CommandMe, Description: "Show your profile"},
	{Text: CommandReferral, Description: "Get your referral link"},
	{Text: CommandMyReferrals, Description: "List your referrals"},
	{Text: CommandBuy, Description: "Upgrade your tier"},
	{Text: CommandLog, Description: "Recent checks"},
	{Text: CommandDisclaimer, Description: "Terms of use"},
}
