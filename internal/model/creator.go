package model

// Creator - кто создал бронирование. От него зависит, кого уведомлять
type Creator string

const (
	CreatorTrainer Creator = "trainer"
	CreatorClient  Creator = "client"
	CreatorUnknown Creator = "unknown"
)

// ParseCreator приводит произвольную строку к известному варианту
func ParseCreator(s string) Creator {
	switch Creator(s) {
	case CreatorTrainer:
		return CreatorTrainer
	case CreatorClient:
		return CreatorClient
	default:
		return CreatorUnknown
	}
}
