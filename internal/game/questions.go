package game

import "github.com/dilemma-game/internal/domain"

// questionBank returns the dilemma scenarios distributed across the game
// skeleton at creation time. Every scenario maps onto the same payoff
// matrix; only the framing changes.
func questionBank() []domain.Question {
	return []domain.Question{
		{
			Text:    "You and your partner are caught for a crime. You can testify against them or stay silent.",
			Context: "If both stay silent you each serve one year. If one testifies and the other stays silent, the informer walks free and the silent one serves five. If both testify, three years each.",
		},
		{
			Text:    "Two competitors can agree on prices or start a price war.",
			Context: "A deal means healthy margins for both. Breaking it alone means windfall profit; if both break it, margins collapse for everyone.",
		},
		{
			Text:    "You and a colleague share a project. You can help each other or look after yourselves.",
			Context: "Mutual help earns both a bonus. Helping alone costs you time while the other takes the credit. If neither helps, the result is mediocre.",
		},
		{
			Text:    "Two countries can cut their arsenals or keep racing.",
			Context: "Mutual cuts bring peace and savings. Cutting alone leaves you exposed. Racing on is safe but ruinously expensive.",
		},
		{
			Text:    "Two friends can split a find fairly or try to cheat each other.",
			Context: "Honesty splits it evenly. Cheating alone takes everything. If both cheat, the find is confiscated.",
		},
		{
			Text:    "Neighbours can agree on quiet hours or each do as they please.",
			Context: "Mutual quiet is comfortable for everyone. Being the only one making noise is fun at the other's expense. If both make noise, both suffer.",
		},
		{
			Text:    "Two firms can share a market or fight for a monopoly.",
			Context: "Sharing gives both a stable profit. Fighting alone wins a bigger slice. If both fight, costs soar and nobody is safe.",
		},
		{
			Text:    "Passengers can respect the queue or push to the front.",
			Context: "A fair queue serves everyone. One queue-jumper saves time at everyone's expense. If everyone pushes, boarding turns to chaos.",
		},
		{
			Text:    "Farmers can agree on harvest quotas or each grow as much as they like.",
			Context: "Quotas keep prices stable. Overproducing alone earns a premium. If everyone overproduces, prices crash.",
		},
		{
			Text:    "Students can take the test honestly or copy answers.",
			Context: "Honest work means fair grades. Copying alone buys a top mark. If everyone copies, the whole class risks sanctions.",
		},
		{
			Text:    "Drivers can follow the traffic rules or cut corners.",
			Context: "Universal compliance keeps the roads safe. A lone violator gets there faster. If everyone violates, accidents follow.",
		},
		{
			Text:    "Traders can deal honestly or shortchange their customers.",
			Context: "Honesty builds trust and steady business. Cheating alone boosts profit for a while. If everyone cheats, trust and trade collapse.",
		},
		{
			Text:    "Flatmates can keep the kitchen clean or leave the mess to others.",
			Context: "If everyone cleans, the place stays pleasant. Skipping your turn saves effort while others cover for you. If nobody cleans, the mess wins.",
		},
		{
			Text:    "Athletes can compete clean or dope.",
			Context: "A clean field is a fair one. Doping alone buys an edge. If everyone dopes, health and careers are ruined.",
		},
		{
			Text:    "Business partners can invest in quality or cut costs.",
			Context: "Joint investment builds a premium product. Cutting costs alone pockets the difference now. If both cut, the reputation is gone.",
		},
		{
			Text:    "Friends can stand by each other in hard times or look out for themselves.",
			Context: "Mutual support builds the friendship. Supporting alone drains your resources. If both walk away, the friendship ends.",
		},
		{
			Text:    "Colleagues can share what they know or hoard it.",
			Context: "Open information makes the whole team effective. Hoarding alone makes you indispensable. If everyone hoards, nothing gets done.",
		},
		{
			Text:    "Bidders can collude on prices or compete openly.",
			Context: "Collusion keeps prices low for the ring. Defecting alone wins the lot cheaply. Open competition drives the price up for everyone.",
		},
		{
			Text:    "Neighbouring countries can open their borders or seal them.",
			Context: "Open borders mean trade and travel for both. Opening alone gives the other side the advantage. Sealed borders mean isolation.",
		},
		{
			Text:    "Forum users can stay civil or go toxic.",
			Context: "Civility makes the place worth visiting. A lone troll gets all the attention. If everyone trolls, the community dies.",
		},
		{
			Text:    "Workers can pull their weight or coast.",
			Context: "If everyone works, the company thrives and pays bonuses. Coasting alone draws a salary for nothing. If everyone coasts, the company folds.",
		},
		{
			Text:    "Customers can wait their turn or demand service first.",
			Context: "Waiting keeps things fair. Demanding alone gets you served sooner. If everyone demands, the counter descends into chaos.",
		},
		{
			Text:    "Project teammates can cooperate or undermine each other.",
			Context: "Cooperation delivers the project. Undermining alone positions you for the credit. Mutual sabotage sinks the whole thing.",
		},
		{
			Text:    "Pet owners can clean up after their animals or not bother.",
			Context: "If everyone cleans up, the park stays usable. Skipping it saves you the trouble. If nobody does, the park is ruined.",
		},
		{
			Text:    "Commuters can offer their seat or keep it.",
			Context: "Offering makes the ride civil. Keeping it while others offer costs you nothing. If nobody offers, tempers flare.",
		},
		{
			Text:    "Children can share their toys or fight over them.",
			Context: "Sharing means everyone plays. Refusing alone gets you all the toys. Mutual refusal ends in tears.",
		},
		{
			Text:    "Drivers can park within the lines or take two spaces.",
			Context: "Careful parking leaves room for all. Taking two spaces is comfortable for one. If everyone does it, half the lot is wasted.",
		},
		{
			Text:    "Cafe guests can clear their table or leave it.",
			Context: "Clearing keeps the place pleasant and the service quick. Leaving it saves you a minute. If everyone leaves it, the cafe drowns in trays.",
		},
		{
			Text:    "Residents can maintain the shared stairwell or ignore it.",
			Context: "Joint upkeep keeps the building decent. Ignoring it alone saves effort. If everyone ignores it, the stairwell decays.",
		},
		{
			Text:    "Online players can play fair or run cheats.",
			Context: "A fair lobby is fun for everyone. Cheating alone wins games. If everyone cheats, the game is pointless.",
		},
		{
			Text:    "Shoppers can handle the stock carefully or damage it.",
			Context: "Care keeps the goods sellable. Carelessness costs you nothing directly. If everyone is careless, the shop eats the losses.",
		},
		{
			Text:    "Office workers can keep the shared kitchen tidy or leave their dishes.",
			Context: "If everyone washes up, the kitchen works. Leaving your mug is easy when others clean. If everyone leaves theirs, the sink overflows.",
		},
		{
			Text:    "Pedestrians can cross at the lights or wherever they like.",
			Context: "Crossing at the lights keeps traffic predictable. Jaywalking alone saves a minute. If everyone jaywalks, drivers and walkers both lose.",
		},
	}
}
